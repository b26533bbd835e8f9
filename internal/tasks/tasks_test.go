package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/bucket"
	"github.com/syntrixbase/daybook/internal/core/storage/memory"
	"github.com/syntrixbase/daybook/internal/core/storage/storetest"
	"github.com/syntrixbase/daybook/pkg/model"
)

var day = time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, *storetest.Faulty) {
	t.Helper()
	remote := storetest.NewFaulty(memory.NewStore())
	s, err := NewStore(bucket.Deps{
		Docs: remote,
		Now:  func() time.Time { return day },
	})
	require.NoError(t, err)
	return s, remote
}

func TestTaskLifecycle(t *testing.T) {
	s, remote := newStore(t)
	ctx := context.Background()

	created, err := s.AddOne(ctx, "u1", Task{
		Title:    "Buy milk",
		DueDate:  "2025-01-10",
		Priority: PriorityLow,
		Status:   StatusToDo,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-05", created.Date)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.UserID)

	snap := s.Snapshot("u1")
	require.Len(t, snap.Items, 1)
	assert.Equal(t, StatusToDo, snap.Items[0].Status)

	_, err = s.UpdateOne(ctx, "u1", "2025-01-05", created.ID, map[string]interface{}{"status": "Completed"})
	require.NoError(t, err)

	s.Reset("u1")
	items, err := s.FetchAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, StatusCompleted, items[0].Status)
	assert.Equal(t, "Buy milk", items[0].Title)
	assert.Equal(t, "2025-01-10", items[0].DueDate)

	require.NoError(t, s.DeleteOne(ctx, "u1", "2025-01-05", created.ID))
	assert.Empty(t, s.Snapshot("u1").Items)

	doc, err := remote.Get(ctx, "tasks/u1/dailyTasks/2025-01-05")
	require.NoError(t, err)
	assert.Empty(t, model.Document(doc.Data).Records("tasks"))
}

func TestTaskValidation(t *testing.T) {
	s, remote := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft Task
	}{
		{"missing title", Task{Priority: PriorityLow, Status: StatusToDo}},
		{"bad priority", Task{Title: "x", Priority: "Urgent", Status: StatusToDo}},
		{"bad status", Task{Title: "x", Priority: PriorityLow, Status: "Done"}},
		{"bad due date", Task{Title: "x", Priority: PriorityLow, Status: StatusToDo, DueDate: "next week"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddOne(ctx, "u1", tt.draft)
			assert.ErrorIs(t, err, model.ErrInvalidEntity)
		})
	}
	assert.Equal(t, 0, remote.TotalCalls())

	created, err := s.AddOne(ctx, "u1", Task{Title: "x", Priority: PriorityHigh, Status: StatusInProgress})
	require.NoError(t, err)
	_, err = s.UpdateOne(ctx, "u1", created.Date, created.ID, map[string]interface{}{"status": "Archived"})
	assert.ErrorIs(t, err, model.ErrInvalidEntity)
}

func TestSummarize(t *testing.T) {
	items := []Task{
		{Status: StatusToDo, DueDate: "2025-01-04"},
		{Status: StatusToDo, DueDate: "2025-01-05"},
		{Status: StatusInProgress},
		{Status: StatusCompleted, DueDate: "2024-12-01"},
	}
	s := Summarize(items, day)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.ByStatus[StatusToDo])
	assert.Equal(t, 1, s.ByStatus[StatusInProgress])
	assert.Equal(t, 1, s.ByStatus[StatusCompleted])
	assert.Equal(t, 1, s.Overdue)
	assert.InDelta(t, 0.25, s.Completion, 1e-9)

	empty := Summarize(nil, day)
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 0, empty.ByStatus[StatusCompleted])
	assert.Zero(t, empty.Completion)
}
