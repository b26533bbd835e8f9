package mongo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/pkg/model"
)

func TestDocumentStore_CRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "users/u1", map[string]interface{}{"displayName": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "u1", created.DocID())

	_, err = s.Create(ctx, "users/u1", nil)
	assert.ErrorIs(t, err, model.ErrExists)

	require.NoError(t, s.Update(ctx, "users/u1", map[string]interface{}{"role": "member"}))
	got, err := s.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Data["displayName"])
	assert.Equal(t, "member", got.Data["role"])
	assert.Equal(t, int64(2), got.Version)

	assert.ErrorIs(t, s.Update(ctx, "users/ghost", map[string]interface{}{"a": 1}), model.ErrNotFound)

	require.NoError(t, s.Set(ctx, "users/u1", map[string]interface{}{"displayName": "Grace"}))
	got, err = s.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"displayName": "Grace"}, got.Data)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)

	require.NoError(t, s.Delete(ctx, "users/u1"))
	assert.ErrorIs(t, s.Delete(ctx, "users/u1"), model.ErrNotFound)
	_, err = s.Get(ctx, "users/u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDocumentStore_QueryPaging(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, fmt.Sprintf("communities/c1/messages/m%d", i), map[string]interface{}{"n": i})
		require.NoError(t, err)
	}

	first, err := s.Query(ctx, model.Query{Collection: "communities/c1/messages", Limit: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)

	rest, err := s.Query(ctx, model.Query{Collection: "communities/c1/messages", Limit: 3, StartAfter: first[2].DocID()})
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	seen := map[string]bool{}
	for _, d := range append(first, rest...) {
		seen[d.DocID()] = true
	}
	assert.Len(t, seen, 5)
}

func TestDocumentStore_ApplyConcurrentUnion(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	path := "tasks/u1/dailyTasks/2025-01-05"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := map[string]interface{}{"id": fmt.Sprintf("t%d", i)}
			assert.NoError(t, s.Apply(ctx, path, []types.FieldOp{types.ArrayUnion("tasks", rec)}, types.ApplyOptions{Upsert: true}))
		}(i)
	}
	wg.Wait()

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Len(t, doc.Data["tasks"], 10)

	err = s.Apply(ctx, "tasks/u1/dailyTasks/2025-01-06", []types.FieldOp{types.Increment("n", 1)}, types.ApplyOptions{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
