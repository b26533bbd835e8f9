package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMakeFilterBSON(t *testing.T) {
	filter, err := makeFilterBSON("communities", model.Filters{
		{Field: "id", Op: model.OpIn, Value: []string{"c1", "c2"}},
		{Field: "creatorId", Op: model.OpEq, Value: "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$in": []string{"communities/c1", "communities/c2"}}, filter["fullpath"])
	assert.Equal(t, bson.M{"$eq": "u1"}, filter["data.creatorId"])

	_, err = makeFilterBSON("communities", model.Filters{{Field: "a", Op: ">"}})
	assert.ErrorIs(t, err, model.ErrInvalidQuery)
}

func TestMakeApplyUpdate(t *testing.T) {
	now := time.UnixMilli(1736067600000)

	update, err := makeApplyUpdate("tasks/u1/dailyTasks/2025-01-05", "tasks/u1/dailyTasks", []types.FieldOp{
		types.ArrayUnion("tasks", map[string]interface{}{"id": "a"}),
	}, true, now)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"data.tasks": bson.M{"$each": []interface{}{map[string]interface{}{"id": "a"}}}}, update["$addToSet"])
	assert.Equal(t, bson.M{"version": 1}, update["$inc"])
	onInsert := update["$setOnInsert"].(bson.M)
	assert.Equal(t, "tasks/u1", onInsert["parent"])
	assert.Equal(t, int64(1736067600000), onInsert["created_at"])

	update, err = makeApplyUpdate("communities/c1/messages/p1", "communities/c1/messages", []types.FieldOp{
		types.Increment("likes", 1),
		types.ArrayRemoveByID("replies", "r1"),
	}, false, now)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"version": 1, "data.likes": float64(1)}, update["$inc"])
	assert.Equal(t, bson.M{"data.replies": bson.M{"id": bson.M{"$in": []string{"r1"}}}}, update["$pull"])
	assert.NotContains(t, update, "$setOnInsert")

	_, err = makeApplyUpdate("a/b", "a", []types.FieldOp{{Kind: "nope", Field: "x"}}, false, now)
	assert.Error(t, err)
	_, err = makeApplyUpdate("a/b", "a", []types.FieldOp{{Kind: types.OpIncrement}}, false, now)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	in := map[string]interface{}{
		"likes": int32(3),
		"total": int64(7),
		"replies": primitive.A{
			primitive.D{{Key: "id", Value: "r1"}, {Key: "likes", Value: int32(1)}},
		},
		"meta": primitive.M{"n": int64(1)},
		"when": primitive.NewDateTimeFromTime(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)),
	}
	out := normalizeData(in)

	assert.Equal(t, float64(3), out["likes"])
	assert.Equal(t, float64(7), out["total"])
	assert.Equal(t, []interface{}{map[string]interface{}{"id": "r1", "likes": float64(1)}}, out["replies"])
	assert.Equal(t, map[string]interface{}{"n": float64(1)}, out["meta"])
	assert.Equal(t, "2025-01-05T00:00:00Z", out["when"])
	assert.Equal(t, map[string]interface{}{}, normalizeData(nil))
}
