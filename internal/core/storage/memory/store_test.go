package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/pkg/model"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestStore_CreateGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithClock(fixedClock()))

	doc, err := s.Create(ctx, "communities/c1", map[string]interface{}{"name": "Go", "members": []string{"u1"}})
	require.NoError(t, err)
	assert.Equal(t, "c1", doc.DocID())
	assert.Equal(t, "communities", doc.Collection)

	_, err = s.Create(ctx, "communities/c1", nil)
	assert.ErrorIs(t, err, model.ErrExists)

	got, err := s.Get(ctx, "communities/c1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"u1"}, got.Data["members"])

	got.Data["name"] = "mutated"
	again, err := s.Get(ctx, "communities/c1")
	require.NoError(t, err)
	assert.Equal(t, "Go", again.Data["name"], "reads must not alias stored data")

	require.NoError(t, s.Set(ctx, "communities/c1", map[string]interface{}{"name": "Gophers"}))
	again, err = s.Get(ctx, "communities/c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Gophers"}, again.Data)
	assert.Equal(t, int64(2), again.Version)
	assert.Equal(t, doc.CreatedAt, again.CreatedAt)

	_, err = s.Get(ctx, "communities/missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Get(ctx, "communities")
	assert.Error(t, err)
}

func TestStore_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.ErrorIs(t, s.Update(ctx, "users/u1", map[string]interface{}{"a": 1}), model.ErrNotFound)

	require.NoError(t, s.Set(ctx, "users/u1", map[string]interface{}{"a": 1, "b": 2}))
	require.NoError(t, s.Update(ctx, "users/u1", map[string]interface{}{"b": 3}))

	got, err := s.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got.Data["a"])
	assert.Equal(t, float64(3), got.Data["b"])

	require.NoError(t, s.Delete(ctx, "users/u1"))
	assert.ErrorIs(t, s.Delete(ctx, "users/u1"), model.ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ListAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithClock(fixedClock()))

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, fmt.Sprintf("communities/c1/messages/m%d", i), map[string]interface{}{"n": i})
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, "communities/c2/messages/other", nil)
	require.NoError(t, err)
	_, err = s.Create(ctx, "communities/c1", nil)
	require.NoError(t, err)

	all, err := s.List(ctx, "communities/c1/messages")
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, doc := range all {
		assert.Equal(t, fmt.Sprintf("m%d", i), doc.DocID())
	}
	assert.Less(t, all[0].CreatedAt, all[1].CreatedAt, "timestamps are strictly increasing under a frozen clock")

	page, err := s.Query(ctx, model.Query{Collection: "communities/c1/messages", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m1", page[1].DocID())

	page, err = s.Query(ctx, model.Query{Collection: "communities/c1/messages", Limit: 2, StartAfter: "m1"})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m2", page[0].DocID())
	assert.Equal(t, "m3", page[1].DocID())

	page, err = s.Query(ctx, model.Query{Collection: "communities/c1/messages", Limit: 2, StartAfter: "m4"})
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = s.Query(ctx, model.Query{Collection: "communities/c1/messages", StartAfter: "nope"})
	assert.ErrorIs(t, err, model.ErrInvalidQuery)

	filtered, err := s.Query(ctx, model.Query{
		Collection: "communities/c1/messages",
		Filters:    model.Filters{{Field: "id", Op: model.OpIn, Value: []string{"m0", "m4"}}},
	})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	top, err := s.List(ctx, "communities")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "c1", top[0].DocID())
}

func TestStore_Apply(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	path := "tasks/u1/dailyTasks/2025-01-05"

	err := s.Apply(ctx, path, []types.FieldOp{types.ArrayUnion("tasks", map[string]interface{}{"id": "a"})}, types.ApplyOptions{})
	assert.ErrorIs(t, err, model.ErrNotFound)

	upsert := types.ApplyOptions{Upsert: true}
	require.NoError(t, s.Apply(ctx, path, []types.FieldOp{types.ArrayUnion("tasks", map[string]interface{}{"id": "a"})}, upsert))
	require.NoError(t, s.Apply(ctx, path, []types.FieldOp{types.ArrayUnion("tasks", map[string]interface{}{"id": "b"}, map[string]interface{}{"id": "a"})}, upsert))

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Len(t, doc.Data["tasks"], 2)

	require.NoError(t, s.Apply(ctx, path, []types.FieldOp{types.ArrayRemoveByID("tasks", "a")}, types.ApplyOptions{}))
	doc, err = s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{map[string]interface{}{"id": "b"}}, doc.Data["tasks"])

	post := "communities/c1/messages/p1"
	require.NoError(t, s.Set(ctx, post, map[string]interface{}{"likes": 0}))
	require.NoError(t, s.Apply(ctx, post, []types.FieldOp{types.Increment("likes", 1)}, types.ApplyOptions{}))
	require.NoError(t, s.Apply(ctx, post, []types.FieldOp{types.Increment("likes", 1)}, types.ApplyOptions{}))
	doc, err = s.Get(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, float64(2), doc.Data["likes"])

	assert.Error(t, s.Apply(ctx, post, []types.FieldOp{types.ArrayUnion("likes", "x")}, types.ApplyOptions{}))
	assert.Error(t, s.Apply(ctx, post, []types.FieldOp{{Kind: "bogus", Field: "likes"}}, types.ApplyOptions{}))
}

func TestStore_ConcurrentArrayUnion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	path := "tasks/u1/dailyTasks/2025-01-05"

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
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
	assert.Len(t, doc.Data["tasks"], 50)
}

func TestStore_RunTransaction(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Set(ctx, "users/u1", map[string]interface{}{"joined": []interface{}{}}))

	t.Run("commit", func(t *testing.T) {
		err := s.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
			if err := tx.Set(ctx, "communities/c1", map[string]interface{}{"members": []interface{}{"u1"}}); err != nil {
				return err
			}
			if err := tx.Update(ctx, "users/u1", map[string]interface{}{"joined": []interface{}{"c1"}}); err != nil {
				return err
			}
			staged, err := tx.Get(ctx, "communities/c1")
			if err != nil {
				return err
			}
			assert.Equal(t, []interface{}{"u1"}, staged.Data["members"])
			return nil
		})
		require.NoError(t, err)

		user, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"c1"}, user.Data["joined"])
		_, err = s.Get(ctx, "communities/c1")
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
			if err := tx.Set(ctx, "communities/c2", map[string]interface{}{}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = s.Get(ctx, "communities/c2")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("update missing", func(t *testing.T) {
		err := s.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
			return tx.Update(ctx, "users/ghost", map[string]interface{}{"a": 1})
		})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("serialised counters", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "counters/c", map[string]interface{}{"n": 0}))
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx types.Tx) error {
					doc, err := tx.Get(ctx, "counters/c")
					if err != nil {
						return err
					}
					return tx.Set(ctx, "counters/c", map[string]interface{}{"n": doc.Data["n"].(float64) + 1})
				}))
			}()
		}
		wg.Wait()
		doc, err := s.Get(ctx, "counters/c")
		require.NoError(t, err)
		assert.Equal(t, float64(20), doc.Data["n"])
	})
}

func TestStore_ContextAndClose(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "users/u1")
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close(context.Background()))
	_, err = s.Get(context.Background(), "users/u1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Set(context.Background(), "users/u1", nil), ErrClosed)
}
