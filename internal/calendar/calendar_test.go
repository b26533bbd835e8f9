package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/bucket"
	"github.com/syntrixbase/daybook/internal/core/storage/memory"
	"github.com/syntrixbase/daybook/pkg/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(bucket.Deps{
		Docs: memory.NewStore(),
		Now:  func() time.Time { return time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return s
}

func TestEventStore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.AddOne(ctx, "u1", Event{
		Title:    "Standup",
		Start:    "2025-01-06T09:00:00Z",
		End:      "2025-01-06T09:15:00Z",
		ColorTag: ColorPrimary,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-05", created.Date)
	assert.Equal(t, "u1", created.UserID)

	updated, err := s.UpdateOne(ctx, "u1", created.Date, created.ID, map[string]interface{}{"colorTag": "Danger"})
	require.NoError(t, err)
	assert.Equal(t, ColorDanger, updated.ColorTag)
	assert.Equal(t, "Standup", updated.Title)

	_, err = s.UpdateOne(ctx, "u1", created.Date, created.ID, map[string]interface{}{"end": "2025-01-06T08:00:00Z"})
	assert.ErrorIs(t, err, model.ErrInvalidEntity)

	s.Reset("u1")
	items, err := s.FetchAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2025-01-06T09:15:00Z", items[0].End)
}

func TestEventValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		event Event
		ok    bool
	}{
		{"all day date", Event{Title: "Holiday", Start: "2025-01-06", AllDay: true, ColorTag: ColorSuccess}, true},
		{"no end", Event{Title: "Call", Start: "2025-01-06T10:00:00Z", ColorTag: ColorWarning}, true},
		{"end before start", Event{Title: "x", Start: "2025-01-06T10:00:00Z", End: "2025-01-06T09:00:00Z", ColorTag: ColorWarning}, false},
		{"bad start", Event{Title: "x", Start: "tomorrow", ColorTag: ColorWarning}, false},
		{"bad end", Event{Title: "x", Start: "2025-01-06", End: "later", ColorTag: ColorWarning}, false},
		{"bad color", Event{Title: "x", Start: "2025-01-06", ColorTag: "Purple"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddOne(ctx, "u1", tt.event)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, model.ErrInvalidEntity)
			}
		})
	}
}

func TestBetween(t *testing.T) {
	events := []Event{
		{ID: "a", Start: "2025-01-06T09:00:00Z", End: "2025-01-06T10:00:00Z"},
		{ID: "b", Start: "2025-01-07", AllDay: true},
		{ID: "c", Start: "2025-01-05T23:00:00Z", End: "2025-01-06T01:00:00Z"},
		{ID: "d", Start: "garbage"},
	}
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	got := Between(events, from, to)
	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}
