package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/metrics"
)

func newImpl(cfg Config) *serverImpl {
	return New(cfg, nil).(*serverImpl)
}

func TestRequestIDMiddleware(t *testing.T) {
	srv := newImpl(Config{})

	t.Run("generated", func(t *testing.T) {
		var seen string
		h := srv.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		h := srv.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "existing-id", GetRequestID(r.Context()))
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "existing-id")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "existing-id", w.Header().Get("X-Request-ID"))
	})

	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newImpl(Config{})
	h := srv.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
}

func TestLoggingMiddleware_Metrics(t *testing.T) {
	srv := newImpl(Config{})
	counter := metrics.HTTPRequests.WithLabelValues(http.MethodPatch, "418")
	before := testutil.ToFloat64(counter)

	h := srv.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestCORSMiddleware(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCORS = true
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	srv := newImpl(cfg)
	h := srv.wrapMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantMethods bool
		wantStatus  int
	}{
		{"allowed", http.MethodGet, "https://app.example.com", false, "https://app.example.com", false, http.StatusOK},
		{"case insensitive", http.MethodGet, "https://APP.example.com", false, "https://APP.example.com", false, http.StatusOK},
		{"other origin", http.MethodGet, "https://evil.example.com", false, "", false, http.StatusOK},
		{"preflight", http.MethodOptions, "https://app.example.com", true, "https://app.example.com", true, http.StatusNoContent},
		{"preflight other origin", http.MethodOptions, "https://evil.example.com", true, "", false, http.StatusNoContent},
		{"plain options reaches handler", http.MethodOptions, "https://app.example.com", false, "https://app.example.com", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/tasks", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods") != "")
			assert.Equal(t, "Origin", w.Header().Get("Vary"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}

	t.Run("empty allow list", func(t *testing.T) {
		open := newImpl(Config{EnableCORS: true})
		assert.True(t, open.originAllowed("https://anything.example.com"))
	})
}

func TestTimeoutMiddleware(t *testing.T) {
	h := TimeoutMiddleware(time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		<-r.Context().Done()
		w.WriteHeader(499)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 499, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/realtime/ws", nil)
	req.Header.Set("Upgrade", "WebSocket")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code, "upgrades carry no deadline")
}

func TestRequestLogLevel(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		ctx    context.Context
		status int
		want   slog.Level
	}{
		{"ok", context.Background(), http.StatusOK, slog.LevelInfo},
		{"client error", context.Background(), http.StatusNotFound, slog.LevelInfo},
		{"client closed", context.Background(), 499, slog.LevelWarn},
		{"server error", context.Background(), http.StatusBadGateway, slog.LevelError},
		{"server error after cancel", canceled, http.StatusInternalServerError, slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tt.ctx)
			assert.Equal(t, tt.want, requestLogLevel(r, tt.status))
		})
	}
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _, err := rw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
	rw.Flush()
}
