package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/concierge/internal/agent"
	"github.com/soyeahso/concierge/internal/channel"
	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel is a test double for domain.Channel.
type mockChannel struct {
	id      string
	mu      sync.Mutex
	sent    []domain.OutboundMessage
	handler func(domain.InboundMessage)
}

func (m *mockChannel) ID() string                    { return m.id }
func (m *mockChannel) Start(_ context.Context) error { return nil }
func (m *mockChannel) Stop(_ context.Context) error  { return nil }
func (m *mockChannel) Status() domain.ChannelStatus {
	return domain.ChannelStatus{ChannelID: m.id, Connected: true, Running: true}
}
func (m *mockChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}
func (m *mockChannel) OnMessage(handler func(domain.InboundMessage)) {
	m.handler = handler
}
func (m *mockChannel) messages() []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutboundMessage(nil), m.sent...)
}

func newTestRunner(log *logging.Logger, sessions domain.SessionStore) *agent.Runner {
	hotel := domain.DefaultHotel()
	return agent.NewRunner(agent.RunnerConfig{
		Hotel:        hotel,
		Reservations: store.NewMemoryReservationStore(),
		Sessions:     sessions,
	}, log)
}

func inbound(from, body string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        "msg-1",
		ChannelID: "irc",
		From:      from,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func TestRouter_HandleInbound_Replies(t *testing.T) {
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)
	sessions := store.NewMemorySessionStore()

	router := NewRouter(reg, newTestRunner(log, sessions), true, log)
	router.HandleInbound(context.Background(), inbound("alice", "I want to book a room"))

	sent := ch.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "irc", sent[0].ChannelID)
	assert.Equal(t, "alice", sent[0].To)
	assert.Equal(t, "Please provide check-in date (YYYY-MM-DD).", sent[0].Body)

	s := sessions.Load(context.Background(), "irc:alice")
	assert.Equal(t, domain.FlowBooking, s.Flow)
	assert.Len(t, s.History, 1)
}

func TestRouter_HandleInbound_NotifierDelivers(t *testing.T) {
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)
	sessions := store.NewMemorySessionStore()

	router := NewRouter(reg, newTestRunner(log, sessions), false, log)
	router.HandleInbound(context.Background(), inbound("bob", "hello there"))

	assert.Empty(t, ch.messages())
	assert.Len(t, sessions.Load(context.Background(), "irc:bob").History, 1)
}

func TestRouter_HandleInbound_NoRunner(t *testing.T) {
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)

	router := NewRouter(reg, nil, true, log)
	router.HandleInbound(context.Background(), inbound("alice", "hi"))

	assert.Empty(t, ch.messages())
}

func TestRouter_HandleInbound_NoSender(t *testing.T) {
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)
	sessions := store.NewMemorySessionStore()

	router := NewRouter(reg, newTestRunner(log, sessions), true, log)
	router.HandleInbound(context.Background(), inbound("", "book a room"))

	assert.Empty(t, ch.messages())
	assert.Empty(t, sessions.Load(context.Background(), "irc:").History)
}

func TestRouter_HandleInbound_ChannelNotFound(t *testing.T) {
	log := testLogger()
	reg := channel.NewRegistry(log)
	sessions := store.NewMemorySessionStore()

	router := NewRouter(reg, newTestRunner(log, sessions), true, log)
	// Should not panic; the turn still runs.
	router.HandleInbound(context.Background(), inbound("carol", "book a room"))

	assert.Equal(t, domain.FlowBooking, sessions.Load(context.Background(), "irc:carol").Flow)
}

func TestRouter_Wire(t *testing.T) {
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)

	router := NewRouter(reg, newTestRunner(log, store.NewMemorySessionStore()), true, log)
	router.Wire(context.Background())
	require.NotNil(t, ch.handler)

	users := []string{"alice", "bob", "carol", "dave"}
	for _, u := range users {
		ch.handler(inbound(u, "I want to book a room"))
	}
	router.Wait()

	sent := ch.messages()
	require.Len(t, sent, len(users))
	got := map[string]bool{}
	for _, m := range sent {
		got[m.To] = true
		assert.Equal(t, "Please provide check-in date (YYYY-MM-DD).", m.Body)
	}
	for _, u := range users {
		assert.True(t, got[u], u)
	}
}

func TestRouter_Wire_SameSenderSerialized(t *testing.T) {
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)
	sessions := store.NewMemorySessionStore()

	router := NewRouter(reg, newTestRunner(log, sessions), true, log)
	router.Wire(context.Background())

	for i := 0; i < 10; i++ {
		ch.handler(inbound("alice", "what time is check-out?"))
	}
	router.Wait()

	assert.Len(t, ch.messages(), 10)
	assert.Len(t, sessions.Load(context.Background(), "irc:alice").History, 10)
}

func TestRouter_SendTo(t *testing.T) {
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)

	router := NewRouter(reg, nil, true, log)
	err := router.SendTo(context.Background(), "irc", "alice", "hello")
	require.NoError(t, err)

	sent := ch.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice", sent[0].To)
	assert.Equal(t, "hello", sent[0].Body)
}

func TestRouter_SendTo_NotFound(t *testing.T) {
	log := testLogger()
	reg := channel.NewRegistry(log)
	router := NewRouter(reg, nil, true, log)

	err := router.SendTo(context.Background(), "nonexistent", "user", "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "channel not found")
}
