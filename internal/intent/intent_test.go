package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nerddash/internal/protocol"
	"nerddash/internal/store"
)

// fakeTransport records every send instead of writing to a socket.
type fakeTransport struct {
	connected bool
	sent      []sentEvent
}

type sentEvent struct {
	eventType string
	payload   interface{}
}

func (f *fakeTransport) Send(eventType string, payload interface{}) {
	f.sent = append(f.sent, sentEvent{eventType, payload})
}

func (f *fakeTransport) IsConnected() bool { return f.connected }

func (f *fakeTransport) last(t *testing.T) sentEvent {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func TestPing(t *testing.T) {
	ft := &fakeTransport{connected: true}
	NewSender(ft).Ping()

	ev := ft.last(t)
	assert.Equal(t, protocol.TypePing, ev.eventType)
	payload, ok := ev.payload.(protocol.PingPayload)
	require.True(t, ok)
	assert.NotZero(t, payload.Timestamp)
}

func TestSendChatMessage(t *testing.T) {
	ft := &fakeTransport{connected: true}
	msg := NewSender(ft).SendChatMessage("default", "hello there")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, store.RoleUser, msg.Role)
	assert.Equal(t, "hello there", msg.Content)
	assert.False(t, msg.CreatedAt.IsZero())

	ev := ft.last(t)
	assert.Equal(t, protocol.TypeChatMessage, ev.eventType)
	payload, ok := ev.payload.(protocol.ChatMessagePayload)
	require.True(t, ok)
	assert.Equal(t, "default", payload.ConversationID)
	assert.Equal(t, msg.ID, payload.MessageID, "wire id must match the minted message")
	assert.Equal(t, "hello there", payload.Content)
	assert.NotZero(t, payload.Timestamp)
}

func TestSendChatMessageOfflineStillMints(t *testing.T) {
	ft := &fakeTransport{connected: false}
	msg := NewSender(ft).SendChatMessage("default", "into the void")

	// The caller still gets a message for optimistic local append; the
	// transport decides what to do with the dropped send.
	assert.NotEmpty(t, msg.ID)
	assert.Len(t, ft.sent, 1)
}

func TestMessageIDsAreUnique(t *testing.T) {
	ft := &fakeTransport{connected: true}
	s := NewSender(ft)

	m1 := s.SendChatMessage("default", "one")
	m2 := s.SendChatMessage("default", "two")
	assert.NotEqual(t, m1.ID, m2.ID)
}

func TestReasoningIntents(t *testing.T) {
	ft := &fakeTransport{connected: true}
	s := NewSender(ft)

	s.StartReasoning("why is the sky blue", "tree-of-thought")
	ev := ft.last(t)
	assert.Equal(t, protocol.TypeStartReasoning, ev.eventType)
	payload, ok := ev.payload.(protocol.StartReasoningPayload)
	require.True(t, ok)
	assert.Equal(t, "why is the sky blue", payload.Problem)
	assert.Equal(t, "tree-of-thought", payload.Mode)

	s.StopReasoning()
	assert.Equal(t, protocol.TypeStopReasoning, ft.last(t).eventType)
}

func TestEvolutionIntents(t *testing.T) {
	ft := &fakeTransport{connected: true}
	s := NewSender(ft)

	s.StartEvolution("planner-v2", 40, 100)
	ev := ft.last(t)
	assert.Equal(t, protocol.TypeStartEvolution, ev.eventType)
	payload, ok := ev.payload.(protocol.StartEvolutionPayload)
	require.True(t, ok)
	assert.Equal(t, "planner-v2", payload.Recipe)
	assert.Equal(t, 40, payload.PopulationSize)
	assert.Equal(t, 100, payload.MaxGenerations)

	s.StopEvolution()
	assert.Equal(t, protocol.TypeStopEvolution, ft.last(t).eventType)
}

func TestRequestSystemMetrics(t *testing.T) {
	ft := &fakeTransport{connected: true}
	NewSender(ft).RequestSystemMetrics()
	assert.Equal(t, protocol.TypeRequestSystemMetrics, ft.last(t).eventType)
}

func TestServerAction(t *testing.T) {
	ft := &fakeTransport{connected: true}
	NewSender(ft).ServerAction("fs", "restart")

	ev := ft.last(t)
	assert.Equal(t, protocol.TypeMCPServerAction, ev.eventType)
	payload, ok := ev.payload.(protocol.MCPServerActionPayload)
	require.True(t, ok)
	assert.Equal(t, "fs", payload.ServerID)
	assert.Equal(t, "restart", payload.Action)
}
