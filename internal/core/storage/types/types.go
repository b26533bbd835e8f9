package types

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/syntrixbase/daybook/pkg/model"
	"github.com/zeebo/blake3"
)

// StoredDoc represents a stored document in the database
type StoredDoc struct {
	// Id is the unique identifier for the document, hash(fullpath)
	Id string `json:"id" bson:"_id"`

	// Fullpath is the Full Pathname of document
	Fullpath string `json:"-" bson:"fullpath"`

	// Collection is the parent collection name
	Collection string `json:"collection" bson:"collection"`

	// Parent is the parent of collection
	Parent string `json:"-" bson:"parent"`

	// UpdatedAt is the timestamp of the last update (Unix milliseconds)
	UpdatedAt int64 `json:"updatedAt" bson:"updated_at"`

	// CreatedAt is the server-assigned creation timestamp (Unix milliseconds)
	CreatedAt int64 `json:"createdAt" bson:"created_at"`

	// Version is incremented on every write
	Version int64 `json:"version" bson:"version"`

	// Data is the actual content of the document
	Data map[string]interface{} `json:"data" bson:"data"`
}

// DocID returns the last path segment.
func (d *StoredDoc) DocID() string {
	if idx := strings.LastIndex(d.Fullpath, "/"); idx != -1 {
		return d.Fullpath[idx+1:]
	}
	return d.Fullpath
}

// Created returns CreatedAt as a time.
func (d *StoredDoc) Created() time.Time {
	return time.UnixMilli(d.CreatedAt).UTC()
}

// CalculateID hashes a full path into the stored document id.
func CalculateID(fullpath string) string {
	hash := blake3.Sum256([]byte(fullpath))
	return hex.EncodeToString(hash[:16])
}

// ParentOf returns the parent document path of a collection path.
func ParentOf(collection string) string {
	if idx := strings.LastIndex(collection, "/"); idx != -1 {
		return collection[:idx]
	}
	return ""
}

// NewStoredDoc creates a new document instance with initialized metadata
func NewStoredDoc(fullpath string, collection string, data map[string]interface{}, now time.Time) *StoredDoc {
	ts := now.UnixMilli()
	return &StoredDoc{
		Id:         CalculateID(fullpath),
		Fullpath:   fullpath,
		Collection: collection,
		Parent:     ParentOf(collection),
		Data:       data,
		UpdatedAt:  ts,
		CreatedAt:  ts,
		Version:    1,
	}
}

// FieldOpKind names an atomic single-field mutation.
type FieldOpKind string

const (
	// OpIncrement adds Delta to a numeric field, treating a missing field as zero.
	OpIncrement FieldOpKind = "increment"
	// OpArrayUnion appends each of Values not already present in the array field.
	OpArrayUnion FieldOpKind = "arrayUnion"
	// OpArrayRemoveByID drops every record in the array field whose "id" is in IDs.
	OpArrayRemoveByID FieldOpKind = "arrayRemoveByID"
)

// FieldOp is one atomic mutation applied by DocumentStore.Apply.
type FieldOp struct {
	Kind   FieldOpKind
	Field  string
	Delta  float64
	Values []interface{}
	IDs    []string
}

func Increment(field string, delta float64) FieldOp {
	return FieldOp{Kind: OpIncrement, Field: field, Delta: delta}
}

func ArrayUnion(field string, values ...interface{}) FieldOp {
	return FieldOp{Kind: OpArrayUnion, Field: field, Values: values}
}

func ArrayRemoveByID(field string, ids ...string) FieldOp {
	return FieldOp{Kind: OpArrayRemoveByID, Field: field, IDs: ids}
}

// ApplyOptions controls DocumentStore.Apply.
type ApplyOptions struct {
	// Upsert creates the document when it is missing instead of failing with ErrNotFound.
	Upsert bool
}

// DocumentStore is the remote bucketed store every entity store writes through.
type DocumentStore interface {
	// Get retrieves a document by its path
	Get(ctx context.Context, path string) (*StoredDoc, error)

	// Create inserts a new document. Fails with ErrExists if it already exists.
	Create(ctx context.Context, path string, data map[string]interface{}) (*StoredDoc, error)

	// Set replaces the document data, creating the document if missing.
	Set(ctx context.Context, path string, data map[string]interface{}) error

	// Update shallow-merges data into an existing document.
	Update(ctx context.Context, path string, data map[string]interface{}) error

	// Delete removes a document by its path
	Delete(ctx context.Context, path string) error

	// List returns every direct child of a collection, oldest first.
	List(ctx context.Context, collection string) ([]*StoredDoc, error)

	// Query returns a page of direct children of a collection, oldest first.
	Query(ctx context.Context, q model.Query) ([]*StoredDoc, error)

	// Apply performs atomic field operations on one document.
	Apply(ctx context.Context, path string, ops []FieldOp, opts ApplyOptions) error

	// RunTransaction runs fn with serializable read-modify-write semantics.
	// Writes made through tx become visible only if fn returns nil.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Close closes the connection to the backend
	Close(ctx context.Context) error
}

// Tx is the view of the store inside RunTransaction.
type Tx interface {
	Get(ctx context.Context, path string) (*StoredDoc, error)
	Set(ctx context.Context, path string, data map[string]interface{}) error
	Update(ctx context.Context, path string, data map[string]interface{}) error
}

// DocumentProvider provides access to DocumentStore
type DocumentProvider interface {
	Document() DocumentStore
	Close(ctx context.Context) error
}
