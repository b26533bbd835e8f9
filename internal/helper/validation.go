package helper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	pathRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\./]+$`)
)

// MaxIDLength bounds a single path segment.
const MaxIDLength = 128

// MaxPathLength bounds a full document path.
const MaxPathLength = 1024

func CheckPath(path string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}

	if len(path) > MaxPathLength {
		return fmt.Errorf("path length cannot exceed %d characters", MaxPathLength)
	}

	if !pathRegex.MatchString(path) {
		return errors.New("path contains invalid characters")
	}

	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return errors.New("path cannot start or end with /")
	}

	if strings.Contains(path, "//") {
		return errors.New("path cannot contain empty segments")
	}

	return nil
}

func CheckDocumentPath(path string) error {
	if err := CheckPath(path); err != nil {
		return err
	}
	parts := strings.Split(path, "/")
	if len(parts)%2 != 0 {
		return errors.New("invalid document path: must have even number of segments (e.g. collection/doc)")
	}

	for i := 1; i < len(parts); i += 2 {
		if len(parts[i]) > MaxIDLength {
			return fmt.Errorf("document ID '%s' exceeds maximum length of %d characters", parts[i], MaxIDLength)
		}
	}
	return nil
}

func CheckCollectionPath(collection string) error {
	if err := CheckPath(collection); err != nil {
		return err
	}
	if len(strings.Split(collection, "/"))%2 != 0 {
		return nil
	}
	return errors.New("invalid collection path: must have odd number of segments (e.g. collection or collection/doc/subcollection)")
}

// ExplodeFullpath splits a document path into its collection and id.
// A collection path comes back with an empty id.
func ExplodeFullpath(path string) (collection string, docID string, err error) {
	if err := CheckPath(path); err != nil {
		return "", "", err
	}

	parts := strings.Split(path, "/")
	if len(parts)%2 != 0 {
		return path, "", nil
	}

	collection = strings.Join(parts[:len(parts)-1], "/")
	docID = parts[len(parts)-1]
	return collection, docID, nil
}

// Join builds a slash separated path. Every segment must be non-empty and
// free of slashes so that ids cannot traverse into other collections.
func Join(segments ...string) (string, error) {
	for _, s := range segments {
		if s == "" {
			return "", errors.New("path segment cannot be empty")
		}
		if strings.Contains(s, "/") {
			return "", fmt.Errorf("path segment %q cannot contain /", s)
		}
	}
	path := strings.Join(segments, "/")
	if err := CheckPath(path); err != nil {
		return "", err
	}
	return path, nil
}

// BucketCollection is the collection holding one owner's day buckets,
// e.g. tasks/{owner}/dailyTasks.
func BucketCollection(collection, owner, subcollection string) (string, error) {
	return Join(collection, owner, subcollection)
}

// BucketPath is the document path of one day bucket.
func BucketPath(collection, owner, subcollection, key string) (string, error) {
	return Join(collection, owner, subcollection, key)
}
