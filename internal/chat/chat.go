// Package chat implements the community message feed. Posts live at
// communities/{community}/messages/{post}; replies are embedded in their post.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/internal/events"
	"github.com/syntrixbase/daybook/internal/helper"
	"github.com/syntrixbase/daybook/internal/metrics"
	"github.com/syntrixbase/daybook/pkg/model"
)

// PageSize is the number of posts per page.
const PageSize = 10

const (
	communitiesCollection = "communities"
	messagesCollection    = "messages"
	entityPost            = "post"
)

var ErrEmptyContent = errors.New("content is required")

// Author identifies who wrote a post or reply.
type Author struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
}

type Reply struct {
	ID string `json:"id"`
	Author
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Likes     int       `json:"likes"`
}

type Post struct {
	ID string `json:"id"`
	Author
	Content string `json:"content"`
	// Timestamp is assigned by the document store on creation.
	Timestamp time.Time `json:"timestamp"`
	Likes     int       `json:"likes"`
	Replies   []Reply   `json:"replies"`
}

// Page is one page of posts, oldest first.
type Page struct {
	Posts []Post `json:"posts"`
	// Cursor is the id of the last post, passed to the next FetchPage.
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"hasMore"`
}

// Feed is the locally accumulated view of one community.
type Feed struct {
	Posts   []Post
	Cursor  string
	HasMore bool
	Loading bool
	Err     error
}

type feed struct {
	posts   []Post
	cursor  string
	hasMore bool
	loading bool
	err     error
}

// Store reads and writes community messages and keeps one feed per
// community. Feed changes are mirrored only after the remote write succeeded.
type Store struct {
	docs    types.DocumentStore
	now     func() time.Time
	newID   func() string
	emitter *events.Emitter
	logger  *slog.Logger

	mu    sync.Mutex
	feeds map[string]*feed
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
		newID:  uuid.NewString,
		logger: slog.Default(),
		feeds:  make(map[string]*feed),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	return s
}

// FetchPage lists up to PageSize posts created after the post named by
// cursor. The community document is created on first access.
func (s *Store) FetchPage(ctx context.Context, communityID, cursor string) (page Page, err error) {
	defer observe("fetch", time.Now(), &err)

	collection, err := s.messages(communityID)
	if err != nil {
		return Page{}, err
	}
	if err := s.ensureCommunity(ctx, communityID); err != nil {
		return Page{}, err
	}

	docs, err := s.docs.Query(ctx, model.Query{Collection: collection, StartAfter: cursor, Limit: PageSize})
	if err != nil {
		return Page{}, model.NewRemoteError(model.RemoteRead, "query", collection, err)
	}

	page = Page{Posts: make([]Post, 0, len(docs)), Cursor: cursor}
	for _, doc := range docs {
		post, err := decodePost(doc)
		if err != nil {
			return Page{}, model.NewRemoteError(model.RemoteRead, "decode", doc.Fullpath, err)
		}
		page.Posts = append(page.Posts, post)
	}
	if n := len(page.Posts); n > 0 {
		page.Cursor = page.Posts[n-1].ID
	}
	page.HasMore = len(page.Posts) == PageSize
	return page, nil
}

// LoadFirst replaces the community's feed with its first page.
func (s *Store) LoadFirst(ctx context.Context, communityID string) (Feed, error) {
	if communityID == "" {
		return Feed{}, model.ErrMissingCommunity
	}
	s.mu.Lock()
	f := s.feedLocked(communityID)
	f.loading = true
	s.mu.Unlock()

	page, err := s.FetchPage(ctx, communityID, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	f = s.feedLocked(communityID)
	f.loading = false
	if err != nil {
		f.err = err
		return snapshot(f), err
	}
	f.posts = page.Posts
	f.cursor = page.Cursor
	f.hasMore = page.HasMore
	f.err = nil
	return snapshot(f), nil
}

// LoadMore appends the next page to the feed. It does nothing when no pages
// remain or a load is already running.
func (s *Store) LoadMore(ctx context.Context, communityID string) (Feed, error) {
	if communityID == "" {
		return Feed{}, model.ErrMissingCommunity
	}
	s.mu.Lock()
	f := s.feedLocked(communityID)
	if !f.hasMore || f.loading {
		out := snapshot(f)
		s.mu.Unlock()
		return out, nil
	}
	f.loading = true
	cursor := f.cursor
	s.mu.Unlock()

	page, err := s.FetchPage(ctx, communityID, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()
	f = s.feedLocked(communityID)
	f.loading = false
	if err != nil {
		f.err = err
		return snapshot(f), err
	}
	for _, p := range page.Posts {
		if !f.contains(p.ID) {
			f.posts = append(f.posts, p)
		}
	}
	f.cursor = page.Cursor
	f.hasMore = page.HasMore
	f.err = nil
	return snapshot(f), nil
}

// Snapshot returns a copy of the community's feed.
func (s *Store) Snapshot(communityID string) Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[communityID]
	if !ok {
		return Feed{Posts: []Post{}, HasMore: true}
	}
	return snapshot(f)
}

// Reset forgets the community's feed.
func (s *Store) Reset(communityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.feeds, communityID)
}

// ResetAll forgets every feed, e.g. on sign-out.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds = make(map[string]*feed)
}

// CreatePost stores a new post with zero likes and no replies. The returned
// post carries the timestamp assigned by the document store.
func (s *Store) CreatePost(ctx context.Context, communityID string, author Author, content string) (post Post, err error) {
	defer observe("create", time.Now(), &err)

	collection, err := s.messages(communityID)
	if err != nil {
		return Post{}, err
	}
	if author.UserID == "" {
		return Post{}, model.ErrNotAuthenticated
	}
	if strings.TrimSpace(content) == "" {
		return Post{}, fmt.Errorf("%w: %w", model.ErrInvalidEntity, ErrEmptyContent)
	}
	if err := s.ensureCommunity(ctx, communityID); err != nil {
		return Post{}, err
	}

	path := collection + "/" + s.newID()
	doc, err := s.docs.Create(ctx, path, map[string]interface{}{
		"userId":     author.UserID,
		"userName":   author.UserName,
		"userAvatar": author.UserAvatar,
		"content":    content,
		"likes":      0,
		"replies":    []interface{}{},
	})
	if err != nil {
		return Post{}, model.NewRemoteError(model.RemoteWrite, "create", path, err)
	}
	post = Post{
		ID:        doc.DocID(),
		Author:    author,
		Content:   content,
		Timestamp: doc.Created(),
		Replies:   []Reply{},
	}

	// Posts are ordered oldest first, so a new post belongs after every
	// unloaded page. It joins the feed now only if the feed is at its end.
	s.mutate(communityID, func(f *feed) {
		if !f.hasMore && !f.contains(post.ID) {
			f.posts = append(f.posts, post)
		}
	})
	s.emitter.Emit(ctx, events.Created, entityPost, communityID, "", post.ID, post)
	return post, nil
}

// AddReply appends a reply to a post with an atomic array union.
func (s *Store) AddReply(ctx context.Context, communityID, postID string, author Author, content string) (reply Reply, err error) {
	defer observe("reply", time.Now(), &err)

	path, err := s.postPath(communityID, postID)
	if err != nil {
		return Reply{}, err
	}
	if author.UserID == "" {
		return Reply{}, model.ErrNotAuthenticated
	}
	if strings.TrimSpace(content) == "" {
		return Reply{}, fmt.Errorf("%w: %w", model.ErrInvalidEntity, ErrEmptyContent)
	}

	reply = Reply{
		ID:        s.newID(),
		Author:    author,
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	rec, err := toRecord(reply)
	if err != nil {
		return Reply{}, err
	}
	if err := s.docs.Apply(ctx, path, []types.FieldOp{types.ArrayUnion("replies", rec)}, types.ApplyOptions{}); err != nil {
		return Reply{}, model.NewRemoteError(model.RemoteWrite, "reply", path, err)
	}

	s.mutatePost(communityID, postID, func(p *Post) {
		p.Replies = append(p.Replies, reply)
	})
	s.emitter.Emit(ctx, events.Updated, entityPost, communityID, "", postID, reply)
	return reply, nil
}

// LikePost increments a post's like counter atomically.
func (s *Store) LikePost(ctx context.Context, communityID, postID string) (err error) {
	defer observe("like_post", time.Now(), &err)

	path, err := s.postPath(communityID, postID)
	if err != nil {
		return err
	}
	if err := s.docs.Apply(ctx, path, []types.FieldOp{types.Increment("likes", 1)}, types.ApplyOptions{}); err != nil {
		return model.NewRemoteError(model.RemoteWrite, "like", path, err)
	}

	s.mutatePost(communityID, postID, func(p *Post) {
		p.Likes++
	})
	s.emitter.Emit(ctx, events.Updated, entityPost, communityID, "", postID, map[string]interface{}{"liked": postID})
	return nil
}

// LikeReply increments a reply's like counter inside a transaction, since
// replies are stored as one array.
func (s *Store) LikeReply(ctx context.Context, communityID, postID, replyID string) (err error) {
	defer observe("like_reply", time.Now(), &err)

	path, err := s.postPath(communityID, postID)
	if err != nil {
		return err
	}
	err = s.docs.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
		doc, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		replies := model.Document(doc.Data).Records("replies")
		found := false
		for _, r := range replies {
			if r.GetID() == replyID {
				r["likes"] = number(r["likes"]) + 1
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("reply %s: %w", replyID, model.ErrNotFound)
		}
		return tx.Update(ctx, path, map[string]interface{}{"replies": model.RecordValues(replies)})
	})
	if err != nil {
		return model.NewRemoteError(model.RemoteWrite, "like_reply", path, err)
	}

	s.mutatePost(communityID, postID, func(p *Post) {
		for i := range p.Replies {
			if p.Replies[i].ID == replyID {
				p.Replies[i].Likes++
				return
			}
		}
	})
	s.emitter.Emit(ctx, events.Updated, entityPost, communityID, "", postID, map[string]interface{}{"liked": replyID})
	return nil
}

func (s *Store) messages(communityID string) (string, error) {
	if communityID == "" {
		return "", model.ErrMissingCommunity
	}
	return helper.Join(communitiesCollection, communityID, messagesCollection)
}

func (s *Store) postPath(communityID, postID string) (string, error) {
	collection, err := s.messages(communityID)
	if err != nil {
		return "", err
	}
	if postID == "" {
		return "", fmt.Errorf("post id: %w", model.ErrNotFound)
	}
	return helper.Join(collection, postID)
}

func (s *Store) ensureCommunity(ctx context.Context, communityID string) error {
	path := communitiesCollection + "/" + communityID
	_, err := s.docs.Get(ctx, path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.NewRemoteError(model.RemoteRead, "get", path, err)
	}
	if _, err := s.docs.Create(ctx, path, map[string]interface{}{"id": communityID}); err != nil && !errors.Is(err, model.ErrExists) {
		return model.NewRemoteError(model.RemoteWrite, "create", path, err)
	}
	s.logger.Debug("Created community document", "community", communityID)
	return nil
}

func (f *feed) contains(postID string) bool {
	for _, p := range f.posts {
		if p.ID == postID {
			return true
		}
	}
	return false
}

func (s *Store) feedLocked(communityID string) *feed {
	f, ok := s.feeds[communityID]
	if !ok {
		f = &feed{hasMore: true}
		s.feeds[communityID] = f
	}
	return f
}

func (s *Store) mutate(communityID string, fn func(*feed)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.feeds[communityID]; ok {
		fn(f)
	}
}

func (s *Store) mutatePost(communityID, postID string, fn func(*Post)) {
	s.mutate(communityID, func(f *feed) {
		for i := range f.posts {
			if f.posts[i].ID == postID {
				fn(&f.posts[i])
				return
			}
		}
	})
}

func snapshot(f *feed) Feed {
	posts := make([]Post, len(f.posts))
	for i, p := range f.posts {
		replies := make([]Reply, len(p.Replies))
		copy(replies, p.Replies)
		p.Replies = replies
		posts[i] = p
	}
	return Feed{Posts: posts, Cursor: f.cursor, HasMore: f.hasMore, Loading: f.loading, Err: f.err}
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveStore(entityPost, op, start, *err)
}

func decodePost(doc *types.StoredDoc) (Post, error) {
	var post Post
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return post, err
	}
	if err := json.Unmarshal(raw, &post); err != nil {
		return post, err
	}
	post.ID = doc.DocID()
	post.Timestamp = doc.Created()
	if post.Replies == nil {
		post.Replies = []Reply{}
	}
	return post, nil
}

func toRecord(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	err = json.Unmarshal(raw, &out)
	return out, err
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
