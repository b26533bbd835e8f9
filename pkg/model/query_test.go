package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Query
		wantErr bool
	}{
		{"ok", Query{Collection: "communities/c1/messages", Limit: 10}, false},
		{"no collection", Query{}, true},
		{"negative limit", Query{Collection: "c", Limit: -1}, true},
		{"bad op", Query{Collection: "c", Filters: Filters{{Field: "a", Op: ">"}}}, true},
		{"in needs strings", Query{Collection: "c", Filters: Filters{{Field: "id", Op: OpIn, Value: 3}}}, true},
		{"in", Query{Collection: "c", Filters: Filters{{Field: "id", Op: OpIn, Value: []string{"a"}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFiltersMatch(t *testing.T) {
	data := map[string]interface{}{"creatorId": "u1"}

	assert.True(t, Filters{}.Match("c1", data))
	assert.True(t, Filters{{Field: "creatorId", Op: OpEq, Value: "u1"}}.Match("c1", data))
	assert.False(t, Filters{{Field: "creatorId", Op: OpEq, Value: "u2"}}.Match("c1", data))
	assert.True(t, Filters{{Field: "id", Op: OpIn, Value: []string{"c0", "c1"}}}.Match("c1", data))
	assert.False(t, Filters{{Field: "id", Op: OpIn, Value: []string{"c0"}}}.Match("c1", data))
}
