package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/syntrixbase/daybook/internal/calendar"
	"github.com/syntrixbase/daybook/internal/chat"
	"github.com/syntrixbase/daybook/internal/community"
	"github.com/syntrixbase/daybook/internal/confirm"
	"github.com/syntrixbase/daybook/internal/core/identity"
	"github.com/syntrixbase/daybook/internal/core/identity/authn"
	"github.com/syntrixbase/daybook/internal/finance"
	"github.com/syntrixbase/daybook/internal/tasks"
)

// DefaultMaxBodySize bounds request bodies.
const DefaultMaxBodySize = 1 << 20

// Stores are the data stores served over HTTP.
type Stores struct {
	Tasks        *tasks.Store
	Events       *calendar.Store
	Transactions *finance.TransactionStore
	Goals        *finance.GoalStore
	Chat         *chat.Store
	Communities  *community.Store
}

type Handler struct {
	stores   Stores
	gates    *confirm.Registry
	verifier authn.TokenValidator
	now      func() time.Time
	logger   *slog.Logger
	maxBody  int64

	tasks        *resource[tasks.Task]
	events       *resource[calendar.Event]
	transactions *resource[finance.Transaction]
	goals        *resource[finance.Goal]
}

type Option func(*Handler)

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func NewHandler(stores Stores, gates *confirm.Registry, verifier authn.TokenValidator, opts ...Option) *Handler {
	if verifier == nil {
		panic("token verifier cannot be nil")
	}
	if gates == nil {
		gates = confirm.NewRegistry()
	}
	h := &Handler{
		stores:   stores,
		gates:    gates,
		verifier: verifier,
		now:      time.Now,
		logger:   slog.Default(),
		maxBody:  DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "rest")

	if stores.Tasks != nil {
		h.tasks = newResource[tasks.Task]("tasks", "task", stores.Tasks, gates)
	}
	if stores.Events != nil {
		h.events = newResource[calendar.Event]("events", "event", stores.Events, gates)
		h.events.narrow = narrowEvents
	}
	if stores.Transactions != nil {
		h.transactions = newResource[finance.Transaction]("transactions", "transaction", stores.Transactions, gates)
	}
	if stores.Goals != nil {
		h.goals = newResource[finance.Goal]("goals", "goal", stores.Goals, gates)
	}
	return h
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /api/v1/tasks/summary", h.protect(h.handleTaskSummary))
	mux.Handle("GET /api/v1/finance/balance", h.protect(h.handleBalance))

	for _, res := range []routable{h.tasks, h.events, h.transactions, h.goals} {
		if res.ready() {
			res.register(mux, h.protect)
		}
	}

	mux.Handle("GET /api/v1/confirmations", h.protect(h.handlePendingConfirmation))
	mux.Handle("POST /api/v1/confirmations/{ticket}", h.protect(h.handleResolveConfirmation))
	mux.Handle("POST /api/v1/logout", h.protect(h.handleLogout))

	if h.stores.Communities != nil {
		mux.Handle("GET /api/v1/communities", h.protect(h.handleListCommunities))
		mux.Handle("GET /api/v1/communities/mine", h.protect(h.handleMyCommunities))
		mux.Handle("POST /api/v1/communities", h.protect(h.handleCreateCommunity))
		mux.Handle("POST /api/v1/communities/{id}/join", h.protect(h.handleJoinCommunity))
		mux.Handle("POST /api/v1/communities/{id}/leave", h.protect(h.handleLeaveCommunity))
	}

	if h.stores.Chat != nil {
		mux.Handle("GET /api/v1/communities/{id}/posts", h.protect(h.handleListPosts))
		mux.Handle("POST /api/v1/communities/{id}/posts", h.protect(h.handleCreatePost))
		mux.Handle("POST /api/v1/communities/{id}/posts/{post}/replies", h.protect(h.handleAddReply))
		mux.Handle("POST /api/v1/communities/{id}/posts/{post}/like", h.protect(h.handleLikePost))
		mux.Handle("POST /api/v1/communities/{id}/posts/{post}/replies/{reply}/like", h.protect(h.handleLikeReply))
	}
}

// protect limits the body and requires a bearer owner token.
func (h *Handler) protect(next http.HandlerFunc) http.Handler {
	authed := authn.Middleware(h.verifier, next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
		}
		authed.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogout drops the caller's caches and any pending confirmation.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	h.SignOut(owner.ID)
	w.WriteHeader(http.StatusNoContent)
}

// SignOut drops the owner's bucket caches and pending confirmation. Shared
// community feeds are kept.
func (h *Handler) SignOut(owner string) {
	if owner == "" {
		return
	}
	for _, res := range []routable{h.tasks, h.events, h.transactions, h.goals} {
		res.reset(owner)
	}
	h.gates.Forget(owner)
	h.logger.Info("Owner signed out", "owner", owner)
}
