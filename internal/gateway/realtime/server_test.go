package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/core/identity"
	"github.com/syntrixbase/daybook/internal/core/identity/authn"
	idconfig "github.com/syntrixbase/daybook/internal/core/identity/config"
	"github.com/syntrixbase/daybook/internal/core/pubsub"
	"github.com/syntrixbase/daybook/internal/core/pubsub/memory"
	"github.com/syntrixbase/daybook/internal/events"
	"github.com/syntrixbase/daybook/internal/gateway/config"
)

type wsEnv struct {
	url     string
	tokens  *authn.TokenService
	emitter *events.Emitter
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	engine := memory.New()
	t.Cleanup(func() { engine.Close() })
	pub, err := engine.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)
	consumer, err := engine.NewConsumer(pubsub.ConsumerOptions{FilterSubject: ChangeSubject})
	require.NoError(t, err)

	cfg := idconfig.DefaultConfig().AuthN
	cfg.TokenSecret = "realtime-test-secret-01"
	tokens, err := authn.NewTokenService(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil)
	require.NoError(t, hub.Start(ctx, consumer))

	srv := NewServer(hub, tokens, config.DefaultGatewayConfig().Realtime, nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &wsEnv{
		url:     "ws" + strings.TrimPrefix(ts.URL, "http") + "/realtime/ws",
		tokens:  tokens,
		emitter: events.NewEmitter(pub, nil),
	}
}

func (e *wsEnv) dial(t *testing.T, uid string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if uid != "" {
		tok, err := e.tokens.Issue(identity.Owner{ID: uid})
		require.NoError(t, err)
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(e.url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg BaseMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) BaseMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg BaseMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_ForwardsOwnAndSubscribedChanges(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "u1")

	send(t, conn, BaseMessage{ID: "s1", Type: TypeSubscribe, Payload: mustMarshal(SubscribePayload{Community: "c1"})})
	ack := read(t, conn)
	assert.Equal(t, TypeSubscribeAck, ack.Type)
	assert.Equal(t, "s1", ack.ID)

	ctx := context.Background()
	env.emitter.Emit(ctx, events.Created, "task", "u2", "2025-01-05", "foreign", nil)
	env.emitter.Emit(ctx, events.Created, "task", "u1", "2025-01-05", "mine", nil)
	env.emitter.Emit(ctx, events.Created, "post", "c1", "", "post-1", nil)

	for _, want := range []string{"mine", "post-1"} {
		msg := read(t, conn)
		require.Equal(t, TypeChange, msg.Type)
		var p ChangePayload
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, want, p.Change.ID)
	}

	send(t, conn, BaseMessage{ID: "u1", Type: TypeUnsubscribe, Payload: mustMarshal(SubscribePayload{Community: "c1"})})
	assert.Equal(t, TypeUnsubscribeAck, read(t, conn).Type)
	env.emitter.Emit(ctx, events.Created, "post", "c1", "", "post-2", nil)
	env.emitter.Emit(ctx, events.Deleted, "task", "u1", "2025-01-05", "mine", nil)

	msg := read(t, conn)
	var p ChangePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, events.Deleted, p.Change.Type)
}

func TestServer_AuthMessage(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "")

	send(t, conn, BaseMessage{ID: "1", Type: TypeSubscribe, Payload: mustMarshal(SubscribePayload{Community: "c1"})})
	msg := read(t, conn)
	require.Equal(t, TypeError, msg.Type)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &e))
	assert.Equal(t, errCodeUnauthorized, e.Code)

	send(t, conn, BaseMessage{ID: "2", Type: TypeAuth, Payload: mustMarshal(AuthPayload{Token: "garbage"})})
	assert.Equal(t, TypeError, read(t, conn).Type)

	tok, err := env.tokens.Issue(identity.Owner{ID: "u9"})
	require.NoError(t, err)
	send(t, conn, BaseMessage{ID: "3", Type: TypeAuth, Payload: mustMarshal(AuthPayload{Token: tok})})
	assert.Equal(t, TypeAuthAck, read(t, conn).Type)

	env.emitter.Emit(context.Background(), events.Created, "goal", "u9", "2025-01-05", "g1", nil)
	assert.Equal(t, TypeChange, read(t, conn).Type)

	send(t, conn, BaseMessage{ID: "4", Type: "bogus"})
	assert.Equal(t, TypeError, read(t, conn).Type)
	send(t, conn, BaseMessage{ID: "5", Type: TypeSubscribe, Payload: mustMarshal(SubscribePayload{})})
	assert.Equal(t, TypeError, read(t, conn).Type)
}

func TestServer_RejectsBadCredentials(t *testing.T) {
	env := newWSEnv(t)

	header := http.Header{"Authorization": {"Bearer nope"}}
	_, resp, err := websocket.DefaultDialer.Dial(env.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(env.url+"?token=abc", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header = http.Header{"Origin": {"https://evil.example.com"}}
	_, resp, err = websocket.DefaultDialer.Dial(env.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCheckAllowedOrigin(t *testing.T) {
	cfg := config.RealtimeConfig{AllowedOrigins: []string{"https://app.example.com/"}}
	tests := []struct {
		name    string
		origin  string
		host    string
		dev     bool
		allowed bool
	}{
		{"no origin", "", "api.example.com", false, true},
		{"same host", "https://api.example.com:8443", "api.example.com:8080", false, true},
		{"listed", "https://app.example.com", "api.example.com", false, true},
		{"unlisted", "https://evil.example.com", "api.example.com", false, false},
		{"localhost without dev", "http://localhost:5173", "api.example.com", false, false},
		{"localhost with dev", "http://localhost:5173", "api.example.com", true, true},
		{"malformed", "://bad", "api.example.com", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.AllowDevOrigin = tt.dev
			err := checkAllowedOrigin(tt.origin, tt.host, c)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
