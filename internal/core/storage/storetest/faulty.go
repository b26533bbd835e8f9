// Package storetest provides DocumentStore wrappers for tests.
package storetest

import (
	"context"
	"sync"

	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"github.com/syntrixbase/daybook/pkg/model"
)

// Op names a DocumentStore method.
type Op string

const (
	OpGet         Op = "get"
	OpCreate      Op = "create"
	OpSet         Op = "set"
	OpUpdate      Op = "update"
	OpDelete      Op = "delete"
	OpList        Op = "list"
	OpQuery       Op = "query"
	OpApply       Op = "apply"
	OpTransaction Op = "transaction"
)

// Faulty wraps a DocumentStore, counting calls and failing the ones that
// have an injected error.
type Faulty struct {
	types.DocumentStore

	mu       sync.Mutex
	calls    map[Op]int
	failures map[Op]error
}

var _ types.DocumentStore = (*Faulty)(nil)

func NewFaulty(inner types.DocumentStore) *Faulty {
	return &Faulty{
		DocumentStore: inner,
		calls:         make(map[Op]int),
		failures:      make(map[Op]error),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (f *Faulty) FailOn(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how many times op was invoked.
func (f *Faulty) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across all ops.
func (f *Faulty) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *Faulty) record(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failures[op]
}

func (f *Faulty) Get(ctx context.Context, path string) (*types.StoredDoc, error) {
	if err := f.record(OpGet); err != nil {
		return nil, err
	}
	return f.DocumentStore.Get(ctx, path)
}

func (f *Faulty) Create(ctx context.Context, path string, data map[string]interface{}) (*types.StoredDoc, error) {
	if err := f.record(OpCreate); err != nil {
		return nil, err
	}
	return f.DocumentStore.Create(ctx, path, data)
}

func (f *Faulty) Set(ctx context.Context, path string, data map[string]interface{}) error {
	if err := f.record(OpSet); err != nil {
		return err
	}
	return f.DocumentStore.Set(ctx, path, data)
}

func (f *Faulty) Update(ctx context.Context, path string, data map[string]interface{}) error {
	if err := f.record(OpUpdate); err != nil {
		return err
	}
	return f.DocumentStore.Update(ctx, path, data)
}

func (f *Faulty) Delete(ctx context.Context, path string) error {
	if err := f.record(OpDelete); err != nil {
		return err
	}
	return f.DocumentStore.Delete(ctx, path)
}

func (f *Faulty) List(ctx context.Context, collection string) ([]*types.StoredDoc, error) {
	if err := f.record(OpList); err != nil {
		return nil, err
	}
	return f.DocumentStore.List(ctx, collection)
}

func (f *Faulty) Query(ctx context.Context, q model.Query) ([]*types.StoredDoc, error) {
	if err := f.record(OpQuery); err != nil {
		return nil, err
	}
	return f.DocumentStore.Query(ctx, q)
}

func (f *Faulty) Apply(ctx context.Context, path string, ops []types.FieldOp, opts types.ApplyOptions) error {
	if err := f.record(OpApply); err != nil {
		return err
	}
	return f.DocumentStore.Apply(ctx, path, ops, opts)
}

func (f *Faulty) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx types.Tx) error) error {
	if err := f.record(OpTransaction); err != nil {
		return err
	}
	return f.DocumentStore.RunTransaction(ctx, fn)
}
