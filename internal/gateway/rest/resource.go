package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/syntrixbase/daybook/internal/bucket"
	"github.com/syntrixbase/daybook/internal/confirm"
	"github.com/syntrixbase/daybook/internal/core/identity"
)

// entityStore is the part of bucket.Store a resource serves.
type entityStore[T bucket.Entity] interface {
	FetchAll(ctx context.Context, owner string) ([]T, error)
	Refresh(ctx context.Context, owner string) ([]T, error)
	Filter(ctx context.Context, owner, expr string) ([]T, error)
	AddOne(ctx context.Context, owner string, draft T) (T, error)
	UpdateOne(ctx context.Context, owner, date, id string, patch map[string]interface{}) (T, error)
	DeleteOne(ctx context.Context, owner, date, id string) error
	Reset(owner string)
}

type routable interface {
	ready() bool
	register(mux *http.ServeMux, protect func(http.HandlerFunc) http.Handler)
	reset(owner string)
}

// resource serves one bucketed entity kind under /api/v1/{name}.
type resource[T bucket.Entity] struct {
	name  string
	label string
	store entityStore[T]
	gates *confirm.Registry
	// narrow post-filters a listing with the remaining query parameters.
	narrow func(items []T, q listQuery) ([]T, error)
}

func newResource[T bucket.Entity](name, label string, store entityStore[T], gates *confirm.Registry) *resource[T] {
	return &resource[T]{name: name, label: label, store: store, gates: gates}
}

func (res *resource[T]) ready() bool {
	return res != nil && res.store != nil
}

func (res *resource[T]) reset(owner string) {
	if res.ready() {
		res.store.Reset(owner)
	}
}

func (res *resource[T]) register(mux *http.ServeMux, protect func(http.HandlerFunc) http.Handler) {
	base := "/api/v1/" + res.name
	mux.Handle("GET "+base, protect(res.handleList))
	mux.Handle("POST "+base, protect(res.handleCreate))
	mux.Handle("PATCH "+base+"/{date}/{id}", protect(res.handleUpdate))
	mux.Handle("DELETE "+base+"/{date}/{id}", protect(res.handleDelete))
}

func (res *resource[T]) handleList(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var q listQuery
	if err := decodeQuery(&q, r.URL.Query()); err != nil {
		writeStoreError(w, err)
		return
	}

	ctx := r.Context()
	var items []T
	if q.Refresh {
		if items, err = res.store.Refresh(ctx, owner.ID); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	switch {
	case q.Filter != "":
		items, err = res.store.Filter(ctx, owner.ID, q.Filter)
	case !q.Refresh:
		items, err = res.store.FetchAll(ctx, owner.ID)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if res.narrow != nil {
		if items, err = res.narrow(items, q); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (res *resource[T]) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var draft T
	if err := readJSON(r, &draft); err != nil {
		writeStoreError(w, err)
		return
	}
	created, err := res.store.AddOne(r.Context(), owner.ID, draft)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (res *resource[T]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var patch map[string]interface{}
	if err := readJSON(r, &patch); err != nil {
		writeStoreError(w, err)
		return
	}
	updated, err := res.store.UpdateOne(r.Context(), owner.ID, r.PathValue("date"), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDelete opens a confirmation; the entity is removed only once the
// ticket is confirmed.
func (res *resource[T]) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	ownerID, date, id := owner.ID, r.PathValue("date"), r.PathValue("id")
	if _, err := bucket.ParseKey(date); err != nil {
		writeStoreError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	req := confirm.Request{
		Title:   "Delete " + res.label,
		Message: fmt.Sprintf("Are you sure you want to delete this %s?", res.label),
		OnConfirm: func(ctx context.Context) error {
			return res.store.DeleteOne(ctx, ownerID, date, id)
		},
	}
	gate := res.gates.Gate(ownerID)
	ticket := gate.Request(req)
	prompt, ok := gate.Pending()
	if !ok || prompt.Ticket != ticket {
		// Superseded by a concurrent request of the same owner.
		prompt = confirm.Prompt{Ticket: ticket, Title: req.Title, Message: req.Message}
	}
	writeJSON(w, http.StatusAccepted, prompt)
}
