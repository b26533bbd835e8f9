package rest

import (
	"context"
	"net/http"

	"github.com/syntrixbase/daybook/internal/community"
	"github.com/syntrixbase/daybook/internal/core/identity"
)

// member returns the caller and makes sure their user document exists.
func (h *Handler) member(w http.ResponseWriter, r *http.Request) (*identity.Owner, bool) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	if _, err := h.stores.Communities.EnsureUser(r.Context(), owner); err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	return owner, true
}

func (h *Handler) handleListCommunities(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	list, err := h.stores.Communities.List(r.Context(), owner.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeCommunities(w, list)
}

func (h *Handler) handleMyCommunities(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	list, err := h.stores.Communities.Mine(r.Context(), owner.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeCommunities(w, list)
}

func (h *Handler) handleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	var draft community.Draft
	if err := readJSON(r, &draft); err != nil {
		writeStoreError(w, err)
		return
	}
	c, err := h.stores.Communities.Create(r.Context(), owner.ID, draft)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleJoinCommunity(w http.ResponseWriter, r *http.Request) {
	h.changeMembership(w, r, h.stores.Communities.Join)
}

func (h *Handler) handleLeaveCommunity(w http.ResponseWriter, r *http.Request) {
	h.changeMembership(w, r, h.stores.Communities.Leave)
}

func (h *Handler) changeMembership(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, owner, communityID string) error) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	if err := change(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCommunities(w http.ResponseWriter, list []community.Community) {
	if list == nil {
		list = []community.Community{}
	}
	writeJSON(w, http.StatusOK, list)
}
