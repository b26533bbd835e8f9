package nats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/core/pubsub"
)

type mockConn struct {
	mock.Mock
	mu       sync.Mutex
	handlers map[string]nats.MsgHandler
}

func newMockConn() *mockConn {
	return &mockConn{handlers: make(map[string]nats.MsgHandler)}
}

func (m *mockConn) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for pattern, h := range m.handlers {
		if pubsub.MatchSubject(pattern, subject) {
			h(&nats.Msg{Subject: subject, Data: data})
		}
	}
	return nil
}

func (m *mockConn) Subscribe(subject string, cb nats.MsgHandler) (unsubscriber, error) {
	m.mu.Lock()
	m.handlers[subject] = cb
	m.mu.Unlock()
	return &mockSub{conn: m, subject: subject}, nil
}

func (m *mockConn) Close() {
	m.Called()
}

type mockSub struct {
	conn    *mockConn
	subject string
}

func (s *mockSub) Unsubscribe() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	delete(s.conn.handlers, s.subject)
	return nil
}

func connectedProvider(t *testing.T, mc *mockConn) *Provider {
	t.Helper()
	p := NewProvider("nats://test:4222", "daybook-test")
	p.natsConnect = func(url string, opts ...nats.Option) (natsConnection, error) {
		assert.Equal(t, "nats://test:4222", url)
		assert.NotEmpty(t, opts)
		return mc, nil
	}
	require.NoError(t, p.Connect(context.Background()))
	return p
}

func TestProvider_NotConnected(t *testing.T) {
	p := NewProvider("nats://test:4222", "x")
	_, err := p.NewPublisher(pubsub.PublisherOptions{})
	assert.ErrorIs(t, err, errNotConnected)
	_, err = p.NewConsumer(pubsub.ConsumerOptions{})
	assert.ErrorIs(t, err, errNotConnected)
	assert.NoError(t, p.Close())
}

func TestProvider_ConnectError(t *testing.T) {
	p := NewProvider("nats://test:4222", "x")
	p.natsConnect = func(string, ...nats.Option) (natsConnection, error) {
		return nil, errors.New("refused")
	}
	err := p.Connect(context.Background())
	assert.ErrorContains(t, err, "refused")
}

func TestProvider_PublishSubscribe(t *testing.T) {
	mc := newMockConn()
	mc.On("Publish", "daybook.changes.task.u1", []byte("hello")).Return(nil)
	mc.On("Close").Return()
	p := connectedProvider(t, mc)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := p.NewConsumer(pubsub.ConsumerOptions{FilterSubject: "daybook.changes.>"})
	require.NoError(t, err)
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	var latency time.Duration
	pub, err := p.NewPublisher(pubsub.PublisherOptions{
		SubjectPrefix: "daybook",
		OnPublish:     func(_ string, _ error, d time.Duration) { latency = d },
	})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "changes.task.u1", []byte("hello")))
	assert.GreaterOrEqual(t, latency, time.Duration(0))

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", string(msg.Data()))
		assert.Equal(t, "daybook.changes.task.u1", msg.Subject())
	case <-time.After(time.Second):
		t.Fatal("no message")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, pub.Close())
	assert.Error(t, pub.Publish(context.Background(), "x", nil))

	require.NoError(t, p.Close())
	mc.AssertExpectations(t)
}

func TestProvider_PublishError(t *testing.T) {
	mc := newMockConn()
	mc.On("Publish", "x", []byte(nil)).Return(errors.New("slow consumer"))
	p := connectedProvider(t, mc)

	pub, err := p.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)
	assert.ErrorContains(t, pub.Publish(context.Background(), "x", nil), "slow consumer")
}
