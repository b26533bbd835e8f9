package rest

import (
	"net/http"

	"github.com/syntrixbase/daybook/internal/chat"
	"github.com/syntrixbase/daybook/internal/core/identity"
)

func authorOf(o *identity.Owner) chat.Author {
	return chat.Author{UserID: o.ID, UserName: o.DisplayName, UserAvatar: o.PhotoURL}
}

// handleListPosts serves a raw page when a cursor is given, and the
// accumulated feed otherwise. more=true appends the next page to the feed.
func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.FromContext(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	var q pageQuery
	if err := decodeQuery(&q, r.URL.Query()); err != nil {
		writeStoreError(w, err)
		return
	}

	ctx, communityID := r.Context(), r.PathValue("id")
	if q.Cursor != "" {
		page, err := h.stores.Chat.FetchPage(ctx, communityID, q.Cursor)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	var (
		feed chat.Feed
		err  error
	)
	if q.More {
		feed, err = h.stores.Chat.LoadMore(ctx, communityID)
	} else {
		feed, err = h.stores.Chat.LoadFirst(ctx, communityID)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	posts := feed.Posts
	if posts == nil {
		posts = []chat.Post{}
	}
	writeJSON(w, http.StatusOK, chat.Page{Posts: posts, Cursor: feed.Cursor, HasMore: feed.HasMore})
}

func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var req contentRequest
	if err := decodeBody(r, &req); err != nil {
		writeStoreError(w, err)
		return
	}
	post, err := h.stores.Chat.CreatePost(r.Context(), r.PathValue("id"), authorOf(owner), req.Content)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) handleAddReply(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var req contentRequest
	if err := decodeBody(r, &req); err != nil {
		writeStoreError(w, err)
		return
	}
	reply, err := h.stores.Chat.AddReply(r.Context(), r.PathValue("id"), r.PathValue("post"), authorOf(owner), req.Content)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func (h *Handler) handleLikePost(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.FromContext(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.stores.Chat.LikePost(r.Context(), r.PathValue("id"), r.PathValue("post")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLikeReply(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.FromContext(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	err := h.stores.Chat.LikeReply(r.Context(), r.PathValue("id"), r.PathValue("post"), r.PathValue("reply"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
