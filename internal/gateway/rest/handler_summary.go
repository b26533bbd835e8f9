package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/syntrixbase/daybook/internal/calendar"
	"github.com/syntrixbase/daybook/internal/core/identity"
	"github.com/syntrixbase/daybook/internal/finance"
	"github.com/syntrixbase/daybook/internal/tasks"
)

// GoalProgress is one goal on the finance dashboard.
type GoalProgress struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Progress float64 `json:"progress"`
	Reached  bool    `json:"reached"`
}

type balanceResponse struct {
	Balance finance.Balance `json:"balance"`
	Goals   []GoalProgress  `json:"goals"`
}

func (h *Handler) handleTaskSummary(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if h.stores.Tasks == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Tasks are not served")
		return
	}
	items, err := h.stores.Tasks.FetchAll(r.Context(), owner.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks.Summarize(items, h.now()))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if h.stores.Transactions == nil || h.stores.Goals == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Finance is not served")
		return
	}
	transactions, err := h.stores.Transactions.FetchAll(r.Context(), owner.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	goals, err := h.stores.Goals.FetchAll(r.Context(), owner.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := balanceResponse{Balance: finance.Summarize(transactions), Goals: make([]GoalProgress, 0, len(goals))}
	for _, g := range goals {
		resp.Goals = append(resp.Goals, GoalProgress{ID: g.ID, Name: g.Name, Progress: g.Progress(), Reached: g.Reached()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// narrowEvents keeps the events overlapping [from, to). A missing bound is
// open.
func narrowEvents(events []calendar.Event, q listQuery) ([]calendar.Event, error) {
	if q.From == "" && q.To == "" {
		return events, nil
	}
	from, to, err := eventWindow(q)
	if err != nil {
		return nil, err
	}
	out := calendar.Between(events, from, to)
	if out == nil {
		out = []calendar.Event{}
	}
	return out, nil
}

func eventWindow(q listQuery) (from, to time.Time, err error) {
	to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	if q.From != "" {
		if from, err = calendar.ParseTime(q.From); err != nil {
			return from, to, fmt.Errorf("%w: from %v", errBadRequest, err)
		}
	}
	if q.To != "" {
		if to, err = calendar.ParseTime(q.To); err != nil {
			return from, to, fmt.Errorf("%w: to %v", errBadRequest, err)
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("%w: to must not be before from", errBadRequest)
	}
	return from, to, nil
}
