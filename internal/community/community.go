// Package community manages community rosters and each user's membership
// lists. A community lives at communities/{id}; membership lists live on
// users/{uid}. Every membership change updates both documents in one
// transaction.
package community

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/daybook/internal/bucket"
	"github.com/syntrixbase/daybook/internal/core/identity"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/internal/events"
	"github.com/syntrixbase/daybook/internal/helper"
	"github.com/syntrixbase/daybook/internal/metrics"
	"github.com/syntrixbase/daybook/pkg/model"
)

const (
	communitiesCollection = "communities"
	usersCollection       = "users"
	entityCommunity       = "community"

	// IDPrefix starts every generated community id.
	IDPrefix = "community-"
	// ChunkSize bounds the ids looked up by one membership query.
	ChunkSize = 10
)

type Community struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	BannerURL   string   `json:"bannerUrl"`
	CreatorID   string   `json:"creatorId"`
	Members     []string `json:"members"`
	CreatedAt   string   `json:"createdAt"`
}

// Draft is the user-supplied part of a new community.
type Draft struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
	BannerURL   string `json:"bannerUrl" validate:"omitempty,url"`
}

// User is the users/{uid} document.
type User struct {
	UID                string   `json:"uid"`
	DisplayName        string   `json:"displayName"`
	Email              string   `json:"email"`
	PhotoURL           string   `json:"photoURL"`
	Role               string   `json:"role"`
	JoinedCommunities  []string `json:"joinedCommunities"`
	CreatedCommunities []string `json:"createdCommunities"`
	CreatedAt          string   `json:"createdAt"`
}

// Owner converts the user document into an owner identity.
func (u User) Owner() *identity.Owner {
	return &identity.Owner{
		ID:                 u.UID,
		DisplayName:        u.DisplayName,
		Email:              u.Email,
		PhotoURL:           u.PhotoURL,
		Role:               u.Role,
		JoinedCommunities:  append([]string(nil), u.JoinedCommunities...),
		CreatedCommunities: append([]string(nil), u.CreatedCommunities...),
	}
}

type Store struct {
	docs    types.DocumentStore
	now     func() time.Time
	newID   func() string
	emitter *events.Emitter
	logger  *slog.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithEmitter(e *events.Emitter) Option {
	return func(s *Store) { s.emitter = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(docs types.DocumentStore, opts ...Option) *Store {
	s := &Store{
		docs:   docs,
		now:    time.Now,
		newID:  func() string { return IDPrefix + uuid.NewString() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "community")
	return s
}

// EnsureUser returns the owner's user document, creating it from the
// identity profile when missing.
func (s *Store) EnsureUser(ctx context.Context, owner *identity.Owner) (user User, err error) {
	defer observe("ensure_user", time.Now(), &err)

	uid, err := identity.RequireID(owner)
	if err != nil {
		return User{}, err
	}
	path, err := helper.Join(usersCollection, uid)
	if err != nil {
		return User{}, err
	}

	doc, err := s.docs.Get(ctx, path)
	if err == nil {
		return decode[User](doc.Data)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return User{}, model.NewRemoteError(model.RemoteRead, "get", path, err)
	}

	user = User{
		UID:                uid,
		DisplayName:        owner.DisplayName,
		Email:              owner.Email,
		PhotoURL:           owner.PhotoURL,
		Role:               owner.Role,
		JoinedCommunities:  []string{},
		CreatedCommunities: []string{},
		CreatedAt:          s.now().UTC().Format(time.RFC3339),
	}
	data, err := encode(user)
	if err != nil {
		return User{}, err
	}
	if _, err := s.docs.Create(ctx, path, data); err != nil {
		if errors.Is(err, model.ErrExists) {
			doc, err := s.docs.Get(ctx, path)
			if err != nil {
				return User{}, model.NewRemoteError(model.RemoteRead, "get", path, err)
			}
			return decode[User](doc.Data)
		}
		return User{}, model.NewRemoteError(model.RemoteWrite, "create", path, err)
	}
	s.logger.Info("Created user document", "uid", uid)
	return user, nil
}

// Create stores a new community with the owner as its only member and
// records it in the owner's createdCommunities.
func (s *Store) Create(ctx context.Context, owner string, draft Draft) (c Community, err error) {
	defer observe("create", time.Now(), &err)

	if owner == "" {
		return Community{}, model.ErrNotAuthenticated
	}
	if err := bucket.ValidateStruct(entityCommunity, draft); err != nil {
		return Community{}, err
	}
	userPath, err := helper.Join(usersCollection, owner)
	if err != nil {
		return Community{}, err
	}

	c = Community{
		ID:          s.newID(),
		Name:        draft.Name,
		Description: draft.Description,
		BannerURL:   draft.BannerURL,
		CreatorID:   owner,
		Members:     []string{owner},
		CreatedAt:   s.now().UTC().Format(time.RFC3339),
	}
	communityPath := communitiesCollection + "/" + c.ID
	data, err := encode(c)
	if err != nil {
		return Community{}, err
	}

	err = s.docs.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
		userDoc, err := tx.Get(ctx, userPath)
		if err != nil {
			return fmt.Errorf("user %s: %w", owner, err)
		}
		created := appendUnique(stringList(userDoc.Data["createdCommunities"]), c.ID)
		if err := tx.Set(ctx, communityPath, data); err != nil {
			return err
		}
		return tx.Update(ctx, userPath, map[string]interface{}{"createdCommunities": toValues(created)})
	})
	if err != nil {
		return Community{}, model.NewRemoteError(model.RemoteWrite, "create", communityPath, err)
	}

	s.emitter.Emit(ctx, events.Created, entityCommunity, c.ID, "", c.ID, c)
	return c, nil
}

// Join adds the owner to the community roster and the community to the
// owner's joinedCommunities. Joining twice is a no-op.
func (s *Store) Join(ctx context.Context, owner, communityID string) (err error) {
	defer observe("join", time.Now(), &err)
	err = s.membership(ctx, owner, communityID, func(list []string, id string) []string {
		return appendUnique(list, id)
	})
	if err == nil {
		s.emitter.Emit(ctx, events.Updated, entityCommunity, communityID, "", communityID, map[string]interface{}{"joined": owner})
	}
	return err
}

// Leave removes the owner from the community roster and the community from
// the owner's joinedCommunities. Leaving a community one is not in is a no-op.
func (s *Store) Leave(ctx context.Context, owner, communityID string) (err error) {
	defer observe("leave", time.Now(), &err)
	err = s.membership(ctx, owner, communityID, remove)
	if err == nil {
		s.emitter.Emit(ctx, events.Updated, entityCommunity, communityID, "", communityID, map[string]interface{}{"left": owner})
	}
	return err
}

func (s *Store) membership(ctx context.Context, owner, communityID string, change func([]string, string) []string) error {
	if owner == "" {
		return model.ErrNotAuthenticated
	}
	if communityID == "" {
		return model.ErrMissingCommunity
	}
	communityPath, err := helper.Join(communitiesCollection, communityID)
	if err != nil {
		return err
	}
	userPath, err := helper.Join(usersCollection, owner)
	if err != nil {
		return err
	}

	err = s.docs.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
		communityDoc, err := tx.Get(ctx, communityPath)
		if err != nil {
			return fmt.Errorf("community %s: %w", communityID, err)
		}
		userDoc, err := tx.Get(ctx, userPath)
		if err != nil {
			return fmt.Errorf("user %s: %w", owner, err)
		}

		members := stringList(communityDoc.Data["members"])
		if next := change(members, owner); len(next) != len(members) {
			if err := tx.Update(ctx, communityPath, map[string]interface{}{"members": toValues(next)}); err != nil {
				return err
			}
		}
		joined := stringList(userDoc.Data["joinedCommunities"])
		if next := change(joined, communityID); len(next) != len(joined) {
			if err := tx.Update(ctx, userPath, map[string]interface{}{"joinedCommunities": toValues(next)}); err != nil {
				return err
			}
		}
		return nil
	})
	return model.NewRemoteError(model.RemoteWrite, "membership", communityPath, err)
}

// Get reads one community.
func (s *Store) Get(ctx context.Context, communityID string) (Community, error) {
	if communityID == "" {
		return Community{}, model.ErrMissingCommunity
	}
	path, err := helper.Join(communitiesCollection, communityID)
	if err != nil {
		return Community{}, err
	}
	doc, err := s.docs.Get(ctx, path)
	if err != nil {
		return Community{}, model.NewRemoteError(model.RemoteRead, "get", path, err)
	}
	return decodeCommunity(doc)
}

// List returns the communities the owner neither created nor joined.
func (s *Store) List(ctx context.Context, owner string) (out []Community, err error) {
	defer observe("list", time.Now(), &err)

	user, err := s.user(ctx, owner)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]struct{})
	for _, id := range append(user.JoinedCommunities, user.CreatedCommunities...) {
		excluded[id] = struct{}{}
	}

	docs, err := s.docs.List(ctx, communitiesCollection)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteRead, "list", communitiesCollection, err)
	}
	out = make([]Community, 0, len(docs))
	for _, doc := range docs {
		if _, skip := excluded[doc.DocID()]; skip {
			continue
		}
		c, err := decodeCommunity(doc)
		if err != nil {
			return nil, model.NewRemoteError(model.RemoteRead, "decode", doc.Fullpath, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Mine returns the communities the owner created or joined, looked up
// ChunkSize ids at a time.
func (s *Store) Mine(ctx context.Context, owner string) (out []Community, err error) {
	defer observe("mine", time.Now(), &err)

	user, err := s.user(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := appendUnique(nil, append(user.JoinedCommunities, user.CreatedCommunities...)...)

	out = make([]Community, 0, len(ids))
	for start := 0; start < len(ids); start += ChunkSize {
		end := min(start+ChunkSize, len(ids))
		q := model.Query{
			Collection: communitiesCollection,
			Filters:    model.Filters{{Field: "id", Op: model.OpIn, Value: ids[start:end]}},
		}
		docs, err := s.docs.Query(ctx, q)
		if err != nil {
			return nil, model.NewRemoteError(model.RemoteRead, "query", communitiesCollection, err)
		}
		for _, doc := range docs {
			c, err := decodeCommunity(doc)
			if err != nil {
				return nil, model.NewRemoteError(model.RemoteRead, "decode", doc.Fullpath, err)
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// user reads users/{owner}. A missing document reads as an empty user.
func (s *Store) user(ctx context.Context, owner string) (User, error) {
	if owner == "" {
		return User{}, model.ErrNotAuthenticated
	}
	path, err := helper.Join(usersCollection, owner)
	if err != nil {
		return User{}, err
	}
	doc, err := s.docs.Get(ctx, path)
	if errors.Is(err, model.ErrNotFound) {
		return User{UID: owner}, nil
	}
	if err != nil {
		return User{}, model.NewRemoteError(model.RemoteRead, "get", path, err)
	}
	return decode[User](doc.Data)
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveStore(entityCommunity, op, start, *err)
}

func decodeCommunity(doc *types.StoredDoc) (Community, error) {
	c, err := decode[Community](doc.Data)
	if err != nil {
		return c, err
	}
	c.ID = doc.DocID()
	if c.Members == nil {
		c.Members = []string{}
	}
	return c, nil
}

func appendUnique(list []string, ids ...string) []string {
	out := append([]string(nil), list...)
	for _, id := range ids {
		found := false
		for _, existing := range out {
			if existing == id {
				found = true
				break
			}
		}
		if !found {
			out = append(out, id)
		}
	}
	return out
}

func remove(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, existing := range list {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toValues(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

func encode(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	err = json.Unmarshal(raw, &out)
	return out, err
}

func decode[T any](data map[string]interface{}) (T, error) {
	var out T
	raw, err := json.Marshal(data)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
