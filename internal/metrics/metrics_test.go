package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/syntrixbase/daybook/pkg/model"
)

func TestResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ResultOK},
		{"not found", fmt.Errorf("get: %w", model.ErrNotFound), ResultNotFound},
		{"canceled", context.Canceled, ResultCanceled},
		{"other", errors.New("boom"), ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Result(tt.err))
		})
	}
}

func TestObserveStore(t *testing.T) {
	before := testutil.ToFloat64(StoreOperations.WithLabelValues("metrics-test", "add", ResultOK))
	ObserveStore("metrics-test", "add", time.Now(), nil)
	ObserveStore("metrics-test", "add", time.Now(), errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(StoreOperations.WithLabelValues("metrics-test", "add", ResultOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(StoreOperations.WithLabelValues("metrics-test", "add", ResultError)))
}
