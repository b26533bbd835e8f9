package mongo

import (
	"fmt"
	"time"

	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// makeFilterBSON translates model filters for documents of one collection.
// The pseudo field "id" addresses the document id through its full path.
func makeFilterBSON(collection string, filters model.Filters) (bson.M, error) {
	bsonFilter := bson.M{}

	for _, f := range filters {
		op := mapOp(f.Op)
		if op == "" {
			return nil, fmt.Errorf("%w: unsupported operator %q", model.ErrInvalidQuery, f.Op)
		}
		if f.Field == "id" {
			bsonFilter["fullpath"] = bson.M{op: idValue(collection, f.Value)}
			continue
		}
		bsonFilter["data."+f.Field] = bson.M{op: f.Value}
	}

	return bsonFilter, nil
}

func idValue(collection string, v interface{}) interface{} {
	switch id := v.(type) {
	case string:
		return collection + "/" + id
	case []string:
		paths := make([]string, len(id))
		for i, s := range id {
			paths[i] = collection + "/" + s
		}
		return paths
	default:
		return v
	}
}

func mapOp(op model.FilterOp) string {
	switch op {
	case model.OpEq:
		return "$eq"
	case model.OpIn:
		return "$in"
	default:
		return ""
	}
}

// makeApplyUpdate builds one update document for a list of field ops.
func makeApplyUpdate(path, collection string, ops []types.FieldOp, upsert bool, now time.Time) (bson.M, error) {
	inc := bson.M{"version": 1}
	addToSet := bson.M{}
	pull := bson.M{}

	for _, op := range ops {
		if op.Field == "" {
			return nil, fmt.Errorf("empty field for %s", op.Kind)
		}
		key := "data." + op.Field
		switch op.Kind {
		case types.OpIncrement:
			inc[key] = op.Delta
		case types.OpArrayUnion:
			addToSet[key] = bson.M{"$each": op.Values}
		case types.OpArrayRemoveByID:
			pull[key] = bson.M{"id": bson.M{"$in": op.IDs}}
		default:
			return nil, fmt.Errorf("unknown field op %q", op.Kind)
		}
	}

	update := bson.M{
		"$set": bson.M{"updated_at": now.UnixMilli()},
		"$inc": inc,
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pull) > 0 {
		update["$pull"] = pull
	}
	if upsert {
		update["$setOnInsert"] = insertFields(path, collection, now)
	}
	return update, nil
}

func insertFields(path, collection string, now time.Time) bson.M {
	return bson.M{
		"fullpath":   path,
		"collection": collection,
		"parent":     types.ParentOf(collection),
		"created_at": now.UnixMilli(),
	}
}

// normalize converts decoded BSON values into the plain JSON shapes the
// rest of the module works with. Numbers become float64.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.M:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

func normalizeData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return normalize(data).(map[string]interface{})
}
