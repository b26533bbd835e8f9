package rest

import (
	"net/http"

	"github.com/syntrixbase/daybook/internal/confirm"
	"github.com/syntrixbase/daybook/internal/core/identity"
)

func (h *Handler) handlePendingConfirmation(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	prompt, ok := h.gates.Gate(owner.ID).Pending()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

// handleResolveConfirmation confirms or cancels the owner's open request.
// A confirmed request reports the error of its action.
func (h *Handler) handleResolveConfirmation(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeStoreError(w, err)
		return
	}

	gate := h.gates.Gate(owner.ID)
	ticket := confirm.Ticket(r.PathValue("ticket"))
	if *req.Confirm {
		err = gate.Confirm(r.Context(), ticket)
	} else {
		err = gate.Cancel(ticket)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
