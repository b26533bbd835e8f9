package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// RepeatFilter drops warn and error records identical to one passed within
// the window. The next identical record after the window carries a
// "suppressed" count. Records below warn always pass.
type RepeatFilter struct {
	handler slog.Handler
	window  time.Duration
	scope   string
	state   *repeatState
}

type repeatState struct {
	mu   sync.Mutex
	seen map[uint64]*repeatEntry
	now  func() time.Time
}

type repeatEntry struct {
	last       time.Time
	suppressed int
}

// maxTracked bounds the table; expired entries are swept when it fills.
const maxTracked = 1024

func NewRepeatFilter(handler slog.Handler, window time.Duration) *RepeatFilter {
	return &RepeatFilter{
		handler: handler,
		window:  window,
		state:   &repeatState{seen: make(map[uint64]*repeatEntry), now: time.Now},
	}
}

func (h *RepeatFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *RepeatFilter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelWarn {
		return h.handler.Handle(ctx, r)
	}

	key := h.key(r)
	st := h.state
	st.mu.Lock()
	now := st.now()
	e, ok := st.seen[key]
	if ok && now.Sub(e.last) < h.window {
		e.suppressed++
		st.mu.Unlock()
		return nil
	}
	suppressed := 0
	if ok {
		suppressed = e.suppressed
	}
	if len(st.seen) >= maxTracked {
		st.sweep(now, h.window)
	}
	st.seen[key] = &repeatEntry{last: now}
	st.mu.Unlock()

	if suppressed > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Int("suppressed", suppressed))
	}
	return h.handler.Handle(ctx, r)
}

// key hashes level, message and attributes, excluding the timestamp.
func (h *RepeatFilter) key(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(h.scope)
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString("|" + a.Key + "=" + a.Value.String())
		return true
	})
	return d.Sum64()
}

func (st *repeatState) sweep(now time.Time, window time.Duration) {
	for k, e := range st.seen {
		if now.Sub(e.last) >= window {
			delete(st.seen, k)
		}
	}
}

// WithAttrs keeps the shared table; the attrs join the key scope so loggers
// for different components do not suppress each other.
func (h *RepeatFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	scope := h.scope
	for _, a := range attrs {
		scope += a.Key + "=" + a.Value.String() + ";"
	}
	return &RepeatFilter{handler: h.handler.WithAttrs(attrs), window: h.window, scope: scope, state: h.state}
}

func (h *RepeatFilter) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &RepeatFilter{handler: h.handler.WithGroup(name), window: h.window, scope: h.scope + name + ".", state: h.state}
}
