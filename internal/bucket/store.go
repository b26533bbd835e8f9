// Package bucket implements the day-bucketed entity store shared by tasks,
// calendar events, transactions and goals.
//
// Every mutation is applied to the remote document store first and mirrored
// into the owner's local cache only after the remote write succeeded; the
// cache is never ahead of the store. Adds use an atomic array union; updates
// and deletes rewrite the bucket array inside a storage transaction.
package bucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/internal/events"
	"github.com/syntrixbase/daybook/internal/filter"
	"github.com/syntrixbase/daybook/internal/helper"
	"github.com/syntrixbase/daybook/internal/metrics"
	"github.com/syntrixbase/daybook/pkg/model"
)

// Entity is implemented by every bucketed entity type.
type Entity interface {
	// EntityID returns the in-bucket id.
	EntityID() string
	// BucketDate returns the bucket key the entity lives in.
	BucketDate() string
}

// State is a point-in-time view of one owner's cache.
type State[T Entity] struct {
	Items    []T
	Loading  bool
	Adding   bool
	Updating bool
	Deleting bool
	// Err is the failure of the last fetch, cleared by the next successful one.
	Err error
}

type opKind int

const (
	opFetch opKind = iota
	opAdd
	opUpdate
	opDelete
)

func (o opKind) String() string {
	switch o {
	case opFetch:
		return "fetch"
	case opAdd:
		return "add"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type ownerState[T Entity] struct {
	items    []T
	inflight [4]int
	err      error
	// gen counts confirmed mutations and resets. A fetch only installs its
	// result if gen did not move while the remote list was in flight.
	gen uint64
}

// maxFetchAttempts bounds how often fetch rereads after racing a mutation.
const maxFetchAttempts = 5

// Option configures a Store.
type Option[T Entity] func(*Store[T])

// WithCheck adds an entity-level check run after the struct tags, on new
// and on merged entities.
func WithCheck[T Entity](check func(T) error) Option[T] {
	return func(s *Store[T]) {
		s.check = check
	}
}

// Store keeps per-owner caches of entities synchronized with their day
// buckets. Safe for concurrent use; the cache lock is never held across a
// remote call.
type Store[T Entity] struct {
	layout  Layout
	docs    types.DocumentStore
	now     func() time.Time
	newID   func() string
	emitter *events.Emitter
	filters *filter.Compiler
	check   func(T) error
	logger  *slog.Logger

	mu     sync.Mutex
	owners map[string]*ownerState[T]
}

func NewStore[T Entity](layout Layout, deps Deps, opts ...Option[T]) (*Store[T], error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	if deps.Docs == nil {
		return nil, errors.New("bucket store requires a document store")
	}
	deps = deps.withDefaults()
	if deps.Filters == nil {
		c, err := filter.NewCompiler()
		if err != nil {
			return nil, err
		}
		deps.Filters = c
	}

	s := &Store[T]{
		layout:  layout,
		docs:    deps.Docs,
		now:     deps.Now,
		newID:   deps.NewID,
		emitter: deps.Emitter,
		filters: deps.Filters,
		logger:  deps.Logger.With("component", "bucket", "entity", layout.Entity),
		owners:  make(map[string]*ownerState[T]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Layout returns the store's layout.
func (s *Store[T]) Layout() Layout {
	return s.layout
}

// FetchAll returns the owner's entities. The remote store is read only while
// the owner's cache is empty; once populated the cache is returned as is.
func (s *Store[T]) FetchAll(ctx context.Context, owner string) ([]T, error) {
	if owner == "" {
		return nil, model.ErrNotAuthenticated
	}

	s.mu.Lock()
	if st, ok := s.owners[owner]; ok && len(st.items) > 0 {
		items := cloneItems(st.items)
		s.mu.Unlock()
		return items, nil
	}
	s.mu.Unlock()

	return s.fetch(ctx, owner)
}

// Refresh rereads every bucket of the owner regardless of the cache.
func (s *Store[T]) Refresh(ctx context.Context, owner string) ([]T, error) {
	if owner == "" {
		return nil, model.ErrNotAuthenticated
	}
	return s.fetch(ctx, owner)
}

func (s *Store[T]) fetch(ctx context.Context, owner string) (items []T, err error) {
	start := time.Now()
	s.begin(owner, opFetch)
	defer func() {
		s.end(owner, opFetch, start, err)
	}()

	collection, err := helper.BucketCollection(s.layout.Collection, owner, s.layout.Subcollection)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		s.mu.Lock()
		gen := s.stateLocked(owner).gen
		s.mu.Unlock()

		loaded, err := s.list(ctx, collection)
		if err != nil {
			s.fail(owner, err)
			return nil, err
		}

		s.mu.Lock()
		st := s.stateLocked(owner)
		if st.gen != gen {
			s.mu.Unlock()
			s.logger.Debug("Refetching after concurrent mutation", "owner", owner, "attempt", attempt+1)
			continue
		}
		st.items = loaded
		st.err = nil
		s.reportLocked()
		items = cloneItems(loaded)
		s.mu.Unlock()
		return items, nil
	}

	err = model.NewRemoteError(model.RemoteRead, "list", collection,
		fmt.Errorf("buckets kept changing during %d reads: %w", maxFetchAttempts, model.ErrPreconditionFailed))
	s.fail(owner, err)
	return nil, err
}

// list reads and flattens every bucket in collection.
func (s *Store[T]) list(ctx context.Context, collection string) ([]T, error) {
	docs, err := s.docs.List(ctx, collection)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteRead, "list", collection, err)
	}

	loaded := make([]T, 0, len(docs))
	for _, doc := range docs {
		key := doc.DocID()
		for _, rec := range model.Document(doc.Data).Records(s.layout.Field) {
			rec[FieldDate] = key
			item, err := decode[T](rec)
			if err != nil {
				return nil, model.NewRemoteError(model.RemoteRead, "decode", doc.Fullpath, err)
			}
			loaded = append(loaded, item)
		}
	}
	return loaded, nil
}

// AddOne creates a new entity in today's bucket and prepends it to the
// owner's cache. The draft's id, date and createdAt are assigned here.
func (s *Store[T]) AddOne(ctx context.Context, owner string, draft T) (created T, err error) {
	var zero T
	if owner == "" {
		return zero, model.ErrNotAuthenticated
	}

	now := s.now().UTC()
	key := BucketKey(now)
	rec, err := encode(draft)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", model.ErrInvalidEntity, err)
	}
	rec[FieldID] = s.newID()
	rec[FieldDate] = key
	rec[FieldCreatedAt] = now.Format(time.RFC3339Nano)
	if s.layout.OwnerField != "" {
		rec[s.layout.OwnerField] = owner
	}
	entity, err := s.materialize(rec)
	if err != nil {
		return zero, err
	}
	record, err := encode(entity)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", model.ErrInvalidEntity, err)
	}

	path, err := helper.BucketPath(s.layout.Collection, owner, s.layout.Subcollection, key)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	s.begin(owner, opAdd)
	defer func() {
		s.end(owner, opAdd, start, err)
	}()

	op := types.ArrayUnion(s.layout.Field, map[string]interface{}(record))
	if err := s.docs.Apply(ctx, path, []types.FieldOp{op}, types.ApplyOptions{Upsert: true}); err != nil {
		return zero, model.NewRemoteError(model.RemoteWrite, "add", path, err)
	}

	s.mu.Lock()
	st := s.stateLocked(owner)
	if !containsID(st.items, entity.EntityID()) {
		st.items = append([]T{entity}, st.items...)
	}
	st.gen++
	s.reportLocked()
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.Created, s.layout.Entity, owner, key, entity.EntityID(), entity)
	return entity, nil
}

// UpdateOne shallow-merges patch onto the entity at (date, id). The id,
// date, createdAt and owner fields cannot be patched.
func (s *Store[T]) UpdateOne(ctx context.Context, owner, date, id string, patch map[string]interface{}) (updated T, err error) {
	var zero T
	if owner == "" {
		return zero, model.ErrNotAuthenticated
	}
	path, err := helper.BucketPath(s.layout.Collection, owner, s.layout.Subcollection, date)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	s.begin(owner, opUpdate)
	defer func() {
		s.end(owner, opUpdate, start, err)
	}()

	var merged T
	err = s.docs.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
		doc, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		records := model.Document(doc.Data).Records(s.layout.Field)
		idx := indexOf(records, id)
		if idx < 0 {
			return fmt.Errorf("%s %s in bucket %s: %w", s.layout.Entity, id, date, model.ErrNotFound)
		}

		next := records[idx].Merge(patch, s.protected()...)
		next[FieldDate] = date
		entity, err := s.materialize(next)
		if err != nil {
			return err
		}
		rec, err := encode(entity)
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidEntity, err)
		}
		records[idx] = rec
		merged = entity
		return tx.Update(ctx, path, map[string]interface{}{s.layout.Field: model.RecordValues(records)})
	})
	if err != nil {
		return zero, model.NewRemoteError(model.RemoteWrite, "update", path, err)
	}

	s.mu.Lock()
	if st, ok := s.owners[owner]; ok {
		st.gen++
		for i, item := range st.items {
			if item.EntityID() == id && item.BucketDate() == date {
				st.items[i] = merged
				break
			}
		}
	}
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.Updated, s.layout.Entity, owner, date, id, merged)
	return merged, nil
}

// DeleteOne removes the entity at (date, id). Deleting an entity that is
// already gone fails with model.ErrNotFound and leaves the cache untouched.
func (s *Store[T]) DeleteOne(ctx context.Context, owner, date, id string) (err error) {
	if owner == "" {
		return model.ErrNotAuthenticated
	}
	path, err := helper.BucketPath(s.layout.Collection, owner, s.layout.Subcollection, date)
	if err != nil {
		return err
	}

	start := time.Now()
	s.begin(owner, opDelete)
	defer func() {
		s.end(owner, opDelete, start, err)
	}()

	err = s.docs.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
		doc, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		records := model.Document(doc.Data).Records(s.layout.Field)
		idx := indexOf(records, id)
		if idx < 0 {
			return fmt.Errorf("%s %s in bucket %s: %w", s.layout.Entity, id, date, model.ErrNotFound)
		}
		records = append(records[:idx], records[idx+1:]...)
		return tx.Update(ctx, path, map[string]interface{}{s.layout.Field: model.RecordValues(records)})
	})
	if err != nil {
		return model.NewRemoteError(model.RemoteWrite, "delete", path, err)
	}

	s.mu.Lock()
	if st, ok := s.owners[owner]; ok {
		st.gen++
		for i, item := range st.items {
			if item.EntityID() == id && item.BucketDate() == date {
				st.items = append(st.items[:i], st.items[i+1:]...)
				break
			}
		}
	}
	s.reportLocked()
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.Deleted, s.layout.Entity, owner, date, id, nil)
	return nil
}

// Filter returns the owner's entities matching a CEL expression over the
// entity's JSON form, bound to the variable item.
func (s *Store[T]) Filter(ctx context.Context, owner, expr string) ([]T, error) {
	prg, err := s.filters.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidQuery, err)
	}
	items, err := s.FetchAll(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		m, err := encode(item)
		if err != nil {
			return nil, err
		}
		ok, err := prg.Match(m)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidQuery, err)
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// Snapshot returns a copy of the owner's cache and status flags.
func (s *Store[T]) Snapshot(owner string) State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.owners[owner]
	if !ok {
		return State[T]{Items: []T{}}
	}
	return State[T]{
		Items:    cloneItems(st.items),
		Loading:  st.inflight[opFetch] > 0,
		Adding:   st.inflight[opAdd] > 0,
		Updating: st.inflight[opUpdate] > 0,
		Deleting: st.inflight[opDelete] > 0,
		Err:      st.err,
	}
}

// Find looks up a cached entity by id.
func (s *Store[T]) Find(owner, id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.owners[owner]; ok {
		for _, item := range st.items {
			if item.EntityID() == id {
				return item, true
			}
		}
	}
	var zero T
	return zero, false
}

// Reset drops the owner's cache, e.g. on sign-out.
func (s *Store[T]) Reset(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.owners[owner]; ok && st.inflight == [4]int{} {
		delete(s.owners, owner)
	} else if ok {
		st.items = nil
		st.err = nil
		st.gen++
	}
	s.reportLocked()
}

func (s *Store[T]) protected() []string {
	keys := []string{FieldID, FieldDate, FieldCreatedAt}
	if s.layout.OwnerField != "" {
		keys = append(keys, s.layout.OwnerField)
	}
	return keys
}

// materialize decodes a record into T and validates it.
func (s *Store[T]) materialize(rec model.Document) (T, error) {
	entity, err := decode[T](rec)
	if err != nil {
		return entity, fmt.Errorf("%w: %v", model.ErrInvalidEntity, err)
	}
	if err := ValidateStruct(s.layout.Entity, entity); err != nil {
		return entity, err
	}
	if s.check != nil {
		if err := s.check(entity); err != nil {
			return entity, err
		}
	}
	return entity, nil
}

func (s *Store[T]) stateLocked(owner string) *ownerState[T] {
	st, ok := s.owners[owner]
	if !ok {
		st = &ownerState[T]{}
		s.owners[owner] = st
	}
	return st
}

func (s *Store[T]) begin(owner string, op opKind) {
	s.mu.Lock()
	s.stateLocked(owner).inflight[op]++
	s.mu.Unlock()
}

func (s *Store[T]) end(owner string, op opKind, start time.Time, err error) {
	s.mu.Lock()
	s.stateLocked(owner).inflight[op]--
	s.mu.Unlock()

	metrics.ObserveStore(s.layout.Entity, op.String(), start, err)
	if err != nil && !errors.Is(err, model.ErrNotFound) && !errors.Is(err, model.ErrInvalidEntity) {
		s.logger.Warn("Store operation failed", "op", op.String(), "owner", owner, "error", err)
	}
}

func (s *Store[T]) fail(owner string, err error) {
	s.mu.Lock()
	s.stateLocked(owner).err = err
	s.mu.Unlock()
}

func (s *Store[T]) reportLocked() {
	total := 0
	for _, st := range s.owners {
		total += len(st.items)
	}
	metrics.CachedItems.WithLabelValues(s.layout.Entity).Set(float64(total))
}

func indexOf(records []model.Document, id string) int {
	for i, rec := range records {
		if rec.GetID() == id {
			return i
		}
	}
	return -1
}

// containsID reports whether a fetch that overlapped the add already cached it.
func containsID[T Entity](items []T, id string) bool {
	for _, item := range items {
		if item.EntityID() == id {
			return true
		}
	}
	return false
}

func cloneItems[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func encode(v interface{}) (model.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decode[T any](rec model.Document) (T, error) {
	var out T
	raw, err := json.Marshal(rec)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
