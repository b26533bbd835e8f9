package model

import "fmt"

// FilterOp defines the supported filter operators.
type FilterOp string

const (
	OpEq FilterOp = "==" // Equal
	OpIn FilterOp = "in" // Value in array
)

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpEq, OpIn:
		return true
	}
	return false
}

// Filter represents a query filter on a top-level data field, or on the
// document id when Field is "id".
type Filter struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

// Filters is a slice of Filter.
type Filters []Filter

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Field == "" {
		return false
	}
	if f.Op == OpIn {
		if _, ok := f.Value.([]string); !ok {
			return false
		}
	}
	return f.Op.IsValid()
}

// Query lists the direct children of a collection, ordered by creation time.
type Query struct {
	Collection string  `json:"collection"`
	Filters    Filters `json:"filters,omitempty"`
	// StartAfter is the id of the last document of the previous page.
	StartAfter string `json:"startAfter,omitempty"`
	// Limit caps the number of documents; zero means unlimited.
	Limit int `json:"limit,omitempty"`
}

// Validate rejects queries the backends cannot run.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	for _, f := range q.Filters {
		if !f.Validate() {
			return fmt.Errorf("%w: bad filter on %q", ErrInvalidQuery, f.Field)
		}
	}
	return nil
}

// Match evaluates the filters against a document id and its data.
func (fs Filters) Match(id string, data map[string]interface{}) bool {
	for _, f := range fs {
		var value interface{}
		if f.Field == "id" {
			value = id
		} else {
			value = data[f.Field]
		}
		switch f.Op {
		case OpEq:
			if value != f.Value {
				return false
			}
		case OpIn:
			s, ok := value.(string)
			if !ok || !containsString(f.Value.([]string), s) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
