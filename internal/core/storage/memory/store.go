// Package memory provides an in-process DocumentStore. Documents are kept
// in a map keyed by full path and a btree ordered by (collection, createdAt,
// path) that serves List and Query.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/internal/helper"
	"github.com/syntrixbase/daybook/pkg/model"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("memory store closed")

type orderItem struct {
	collection string
	createdAt  int64
	path       string
}

func lessFunc(a, b orderItem) bool {
	if a.collection != b.collection {
		return a.collection < b.collection
	}
	if a.createdAt != b.createdAt {
		return a.createdAt < b.createdAt
	}
	return a.path < b.path
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is a goroutine-safe in-memory DocumentStore.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*types.StoredDoc
	order  *btree.BTreeG[orderItem]
	now    func() time.Time
	lastTS int64
	closed bool
}

var _ types.DocumentStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string]*types.StoredDoc),
		order: btree.NewG[orderItem](32, lessFunc),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns a strictly increasing millisecond timestamp so that
// creation order is total even when the clock does not move.
func (s *Store) timestamp() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

func (s *Store) Get(ctx context.Context, path string) (*types.StoredDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := helper.CheckDocumentPath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.getLocked(path)
}

func (s *Store) getLocked(path string) (*types.StoredDoc, error) {
	doc, ok := s.docs[path]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneDoc(doc)
}

func (s *Store) Create(ctx context.Context, path string, data map[string]interface{}) (*types.StoredDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	collection, err := documentCollection(path)
	if err != nil {
		return nil, err
	}
	copied, err := cloneData(data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.docs[path]; ok {
		return nil, model.ErrExists
	}
	doc := s.insertLocked(path, collection, copied)
	return cloneDoc(doc)
}

func (s *Store) Set(ctx context.Context, path string, data map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, err := documentCollection(path)
	if err != nil {
		return err
	}
	copied, err := cloneData(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.setLocked(path, collection, copied)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, data map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := helper.CheckDocumentPath(path); err != nil {
		return err
	}
	copied, err := cloneData(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.updateLocked(path, copied)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := helper.CheckDocumentPath(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	doc, ok := s.docs[path]
	if !ok {
		return model.ErrNotFound
	}
	s.order.Delete(orderItem{collection: doc.Collection, createdAt: doc.CreatedAt, path: path})
	delete(s.docs, path)
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]*types.StoredDoc, error) {
	return s.Query(ctx, model.Query{Collection: collection})
}

func (s *Store) Query(ctx context.Context, q model.Query) ([]*types.StoredDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := helper.CheckCollectionPath(q.Collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	pivot := orderItem{collection: q.Collection, createdAt: math.MinInt64}
	if q.StartAfter != "" {
		cursor, ok := s.docs[q.Collection+"/"+q.StartAfter]
		if !ok {
			return nil, fmt.Errorf("%w: unknown cursor %q", model.ErrInvalidQuery, q.StartAfter)
		}
		pivot = orderItem{collection: q.Collection, createdAt: cursor.CreatedAt, path: cursor.Fullpath}
	}

	var (
		out      []*types.StoredDoc
		cloneErr error
	)
	s.order.AscendGreaterOrEqual(pivot, func(item orderItem) bool {
		if item.collection != q.Collection {
			return false
		}
		if q.StartAfter != "" && item.path == pivot.path {
			return true
		}
		doc := s.docs[item.path]
		if !q.Filters.Match(doc.DocID(), doc.Data) {
			return true
		}
		copied, err := cloneDoc(doc)
		if err != nil {
			cloneErr = err
			return false
		}
		out = append(out, copied)
		return q.Limit == 0 || len(out) < q.Limit
	})
	if cloneErr != nil {
		return nil, cloneErr
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, path string, ops []types.FieldOp, opts types.ApplyOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, err := documentCollection(path)
	if err != nil {
		return err
	}
	values := make([]types.FieldOp, len(ops))
	for i, op := range ops {
		values[i] = op
		if len(op.Values) > 0 {
			copied, err := cloneValue(op.Values)
			if err != nil {
				return err
			}
			values[i].Values = copied.([]interface{})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	doc, ok := s.docs[path]
	var data map[string]interface{}
	switch {
	case ok:
		data = shallowCopy(doc.Data)
	case opts.Upsert:
		data = map[string]interface{}{}
	default:
		return model.ErrNotFound
	}

	for _, op := range values {
		if err := applyOp(data, op); err != nil {
			return err
		}
	}

	if ok {
		s.replaceLocked(doc, data)
	} else {
		s.insertLocked(path, collection, data)
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx types.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx := &memTx{store: s, staged: make(map[string]map[string]interface{})}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, path := range tx.writeOrder {
		data := tx.staged[path]
		if doc, ok := s.docs[path]; ok {
			s.replaceLocked(doc, data)
			continue
		}
		collection, _ := documentCollection(path)
		s.insertLocked(path, collection, data)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) insertLocked(path, collection string, data map[string]interface{}) *types.StoredDoc {
	ts := s.timestamp()
	doc := types.NewStoredDoc(path, collection, data, time.UnixMilli(ts))
	s.docs[path] = doc
	s.order.ReplaceOrInsert(orderItem{collection: collection, createdAt: doc.CreatedAt, path: path})
	return doc
}

func (s *Store) replaceLocked(doc *types.StoredDoc, data map[string]interface{}) {
	doc.Data = data
	doc.UpdatedAt = s.timestamp()
	doc.Version++
}

func (s *Store) setLocked(path, collection string, data map[string]interface{}) {
	if doc, ok := s.docs[path]; ok {
		s.replaceLocked(doc, data)
		return
	}
	s.insertLocked(path, collection, data)
}

func (s *Store) updateLocked(path string, data map[string]interface{}) error {
	doc, ok := s.docs[path]
	if !ok {
		return model.ErrNotFound
	}
	merged := shallowCopy(doc.Data)
	for k, v := range data {
		merged[k] = v
	}
	s.replaceLocked(doc, merged)
	return nil
}

// memTx stages writes on top of the locked store.
type memTx struct {
	store      *Store
	staged     map[string]map[string]interface{}
	writeOrder []string
}

func (tx *memTx) Get(ctx context.Context, path string) (*types.StoredDoc, error) {
	if err := helper.CheckDocumentPath(path); err != nil {
		return nil, err
	}
	if data, ok := tx.staged[path]; ok {
		collection, _ := documentCollection(path)
		doc := &types.StoredDoc{Id: types.CalculateID(path), Fullpath: path, Collection: collection, Parent: types.ParentOf(collection)}
		if existing, ok := tx.store.docs[path]; ok {
			doc.CreatedAt = existing.CreatedAt
			doc.Version = existing.Version
		}
		copied, err := cloneData(data)
		if err != nil {
			return nil, err
		}
		doc.Data = copied
		return doc, nil
	}
	return tx.store.getLocked(path)
}

func (tx *memTx) Set(ctx context.Context, path string, data map[string]interface{}) error {
	if _, err := documentCollection(path); err != nil {
		return err
	}
	copied, err := cloneData(data)
	if err != nil {
		return err
	}
	tx.stage(path, copied)
	return nil
}

func (tx *memTx) Update(ctx context.Context, path string, data map[string]interface{}) error {
	current, err := tx.Get(ctx, path)
	if err != nil {
		return err
	}
	copied, err := cloneData(data)
	if err != nil {
		return err
	}
	for k, v := range copied {
		current.Data[k] = v
	}
	tx.stage(path, current.Data)
	return nil
}

func (tx *memTx) stage(path string, data map[string]interface{}) {
	if _, ok := tx.staged[path]; !ok {
		tx.writeOrder = append(tx.writeOrder, path)
	}
	tx.staged[path] = data
}

func documentCollection(path string) (string, error) {
	if err := helper.CheckDocumentPath(path); err != nil {
		return "", err
	}
	collection, _, err := helper.ExplodeFullpath(path)
	return collection, err
}

func applyOp(data map[string]interface{}, op types.FieldOp) error {
	if op.Field == "" || strings.Contains(op.Field, ".") {
		return fmt.Errorf("invalid field %q for %s", op.Field, op.Kind)
	}
	switch op.Kind {
	case types.OpIncrement:
		var current float64
		switch v := data[op.Field].(type) {
		case nil:
		case float64:
			current = v
		default:
			return fmt.Errorf("field %q is not numeric", op.Field)
		}
		data[op.Field] = current + op.Delta
	case types.OpArrayUnion:
		arr, err := arrayField(data, op.Field)
		if err != nil {
			return err
		}
		for _, v := range op.Values {
			if !containsValue(arr, v) {
				arr = append(arr, v)
			}
		}
		data[op.Field] = arr
	case types.OpArrayRemoveByID:
		arr, err := arrayField(data, op.Field)
		if err != nil {
			return err
		}
		kept := make([]interface{}, 0, len(arr))
		for _, v := range arr {
			if rec, ok := v.(map[string]interface{}); ok {
				if id, _ := rec["id"].(string); containsID(op.IDs, id) {
					continue
				}
			}
			kept = append(kept, v)
		}
		data[op.Field] = kept
	default:
		return fmt.Errorf("unknown field op %q", op.Kind)
	}
	return nil
}

func arrayField(data map[string]interface{}, field string) ([]interface{}, error) {
	switch v := data[field].(type) {
	case nil:
		return []interface{}{}, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		copy(out, v)
		return out, nil
	default:
		return nil, fmt.Errorf("field %q is not an array", field)
	}
}

func containsValue(arr []interface{}, v interface{}) bool {
	for _, existing := range arr {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func shallowCopy(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// cloneValue deep-copies through JSON so the store never aliases caller
// memory and numbers always come back as float64, as from a remote store.
func cloneValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func cloneData(data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		return map[string]interface{}{}, nil
	}
	v, err := cloneValue(data)
	if err != nil {
		return nil, err
	}
	return v.(map[string]interface{}), nil
}

func cloneDoc(doc *types.StoredDoc) (*types.StoredDoc, error) {
	data, err := cloneData(doc.Data)
	if err != nil {
		return nil, err
	}
	out := *doc
	out.Data = data
	return &out, nil
}
