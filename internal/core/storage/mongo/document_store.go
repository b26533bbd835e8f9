package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/internal/helper"
	"github.com/syntrixbase/daybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type documentStore struct {
	client         *mongo.Client
	db             *mongo.Database
	dataCollection string
	now            func() time.Time
}

var _ types.DocumentStore = (*documentStore)(nil)

// NewDocumentStore initializes a new MongoDB document store
func NewDocumentStore(client *mongo.Client, db *mongo.Database, dataColl string) types.DocumentStore {
	return newDocumentStore(client, db, dataColl)
}

func newDocumentStore(client *mongo.Client, db *mongo.Database, dataColl string) *documentStore {
	return &documentStore{
		client:         client,
		db:             db,
		dataCollection: dataColl,
		now:            time.Now,
	}
}

func (m *documentStore) coll() *mongo.Collection {
	return m.db.Collection(m.dataCollection)
}

func (m *documentStore) Get(ctx context.Context, fullpath string) (*types.StoredDoc, error) {
	if err := helper.CheckDocumentPath(fullpath); err != nil {
		return nil, err
	}

	var doc types.StoredDoc
	err := m.coll().FindOne(ctx, bson.M{"_id": types.CalculateID(fullpath)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	doc.Data = normalizeData(doc.Data)
	return &doc, nil
}

func (m *documentStore) Create(ctx context.Context, fullpath string, data map[string]interface{}) (*types.StoredDoc, error) {
	collection, err := documentCollection(fullpath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	doc := types.NewStoredDoc(fullpath, collection, data, m.now())
	if _, err := m.coll().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, model.ErrExists
		}
		return nil, model.WrapError(err)
	}
	doc.Data = normalizeData(data)
	return doc, nil
}

func (m *documentStore) Set(ctx context.Context, fullpath string, data map[string]interface{}) error {
	collection, err := documentCollection(fullpath)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	now := m.now()
	update := bson.M{
		"$set": bson.M{
			"data":       data,
			"updated_at": now.UnixMilli(),
		},
		"$inc":         bson.M{"version": 1},
		"$setOnInsert": insertFields(fullpath, collection, now),
	}
	_, err = m.coll().UpdateOne(ctx, bson.M{"_id": types.CalculateID(fullpath)}, update, options.Update().SetUpsert(true))
	return model.WrapError(err)
}

func (m *documentStore) Update(ctx context.Context, fullpath string, data map[string]interface{}) error {
	if err := helper.CheckDocumentPath(fullpath); err != nil {
		return err
	}

	updates := bson.M{
		"updated_at": m.now().UnixMilli(),
	}
	for k, v := range data {
		updates["data."+k] = v
	}

	update := bson.M{
		"$set": updates,
		"$inc": bson.M{
			"version": 1,
		},
	}

	result, err := m.coll().UpdateOne(ctx, bson.M{"_id": types.CalculateID(fullpath)}, update)
	if err != nil {
		return model.WrapError(err)
	}
	if result.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *documentStore) Delete(ctx context.Context, fullpath string) error {
	if err := helper.CheckDocumentPath(fullpath); err != nil {
		return err
	}

	result, err := m.coll().DeleteOne(ctx, bson.M{"_id": types.CalculateID(fullpath)})
	if err != nil {
		return model.WrapError(err)
	}
	if result.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *documentStore) List(ctx context.Context, collection string) ([]*types.StoredDoc, error) {
	return m.Query(ctx, model.Query{Collection: collection})
}

func (m *documentStore) Query(ctx context.Context, q model.Query) ([]*types.StoredDoc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := helper.CheckCollectionPath(q.Collection); err != nil {
		return nil, err
	}

	filter, err := makeFilterBSON(q.Collection, q.Filters)
	if err != nil {
		return nil, err
	}
	filter["collection"] = q.Collection

	if q.StartAfter != "" {
		var cursorDoc types.StoredDoc
		err := m.coll().FindOne(ctx, bson.M{"_id": types.CalculateID(q.Collection + "/" + q.StartAfter)}).Decode(&cursorDoc)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("%w: unknown cursor %q", model.ErrInvalidQuery, q.StartAfter)
			}
			return nil, model.WrapError(err)
		}
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$gt": cursorDoc.CreatedAt}},
			bson.M{"created_at": cursorDoc.CreatedAt, "fullpath": bson.M{"$gt": cursorDoc.Fullpath}},
		}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "fullpath", Value: 1}})
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := m.coll().Find(ctx, filter, findOptions)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer cursor.Close(ctx)

	var docs []*types.StoredDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.WrapError(err)
	}
	for _, doc := range docs {
		doc.Data = normalizeData(doc.Data)
	}
	return docs, nil
}

func (m *documentStore) Apply(ctx context.Context, fullpath string, ops []types.FieldOp, opts types.ApplyOptions) error {
	collection, err := documentCollection(fullpath)
	if err != nil {
		return err
	}

	update, err := makeApplyUpdate(fullpath, collection, ops, opts.Upsert, m.now())
	if err != nil {
		return err
	}

	result, err := m.coll().UpdateOne(ctx, bson.M{"_id": types.CalculateID(fullpath)}, update, options.Update().SetUpsert(opts.Upsert))
	if err != nil {
		return model.WrapError(err)
	}
	if !opts.Upsert && result.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// RunTransaction runs fn inside a session transaction. The driver may
// retry fn on transient errors, so fn must only write through tx.
func (m *documentStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx types.Tx) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return model.WrapError(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{store: m})
	})
	return model.WrapError(err)
}

// EnsureIndexes creates necessary indexes
func (m *documentStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection", Value: 1}, {Key: "created_at", Value: 1}, {Key: "fullpath", Value: 1}},
	})
	return err
}

func (m *documentStore) Close(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// mongoTx forwards to the store using the session context handed to fn.
type mongoTx struct {
	store *documentStore
}

func (tx *mongoTx) Get(ctx context.Context, path string) (*types.StoredDoc, error) {
	return tx.store.Get(ctx, path)
}

func (tx *mongoTx) Set(ctx context.Context, path string, data map[string]interface{}) error {
	return tx.store.Set(ctx, path, data)
}

func (tx *mongoTx) Update(ctx context.Context, path string, data map[string]interface{}) error {
	return tx.store.Update(ctx, path, data)
}

func documentCollection(fullpath string) (string, error) {
	if err := helper.CheckDocumentPath(fullpath); err != nil {
		return "", err
	}
	collection, _, err := helper.ExplodeFullpath(fullpath)
	return collection, err
}
