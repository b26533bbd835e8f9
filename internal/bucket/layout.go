package bucket

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/internal/events"
	"github.com/syntrixbase/daybook/internal/filter"
)

// KeyLayout is the bucket key format, one bucket per UTC calendar day.
const KeyLayout = "2006-01-02"

// Reserved record keys. They are assigned by the store and never patched.
const (
	FieldID        = "id"
	FieldDate      = "date"
	FieldCreatedAt = "createdAt"
)

// Layout describes where one entity kind lives.
//
// A bucket document sits at {Collection}/{owner}/{Subcollection}/{key} and
// holds the entity records in the array field Field.
type Layout struct {
	// Entity is the singular name used in change events and metrics.
	Entity        string
	Collection    string
	Subcollection string
	Field         string
	// OwnerField, when set, is stamped with the owner id on creation.
	OwnerField string
}

func (l Layout) validate() error {
	if l.Entity == "" || l.Collection == "" || l.Subcollection == "" || l.Field == "" {
		return errors.New("bucket layout requires entity, collection, subcollection and field")
	}
	return nil
}

// BucketKey returns the bucket key for t.
func BucketKey(t time.Time) string {
	return t.UTC().Format(KeyLayout)
}

// ParseKey checks that key is a valid bucket key.
func ParseKey(key string) (time.Time, error) {
	t, err := time.Parse(KeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid bucket key %q: %w", key, err)
	}
	return t, nil
}

// Deps are the collaborators shared by every store.
type Deps struct {
	Docs types.DocumentStore
	// Now stamps bucket keys and creation times. Defaults to time.Now.
	Now func() time.Time
	// NewID generates entity ids. Defaults to uuid.NewString.
	NewID   func() string
	Emitter *events.Emitter
	Filters *filter.Compiler
	Logger  *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}
