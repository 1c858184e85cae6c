package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nerddash/internal/bus"
	"nerddash/internal/protocol"
)

func wiredStore(t *testing.T) (*Store, *bus.Bus) {
	t.Helper()
	s := New()
	b := bus.New()
	s.Wire(b)
	return s, b
}

func TestWireChatResponse(t *testing.T) {
	s, b := wiredStore(t)

	b.Publish(protocol.TypeChatResponse, json.RawMessage(
		`{"conversation_id":"default","message_id":"m1","role":"agent","content":"hello"}`))

	msgs := s.Messages("default")
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, RoleAgent, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestWireChatResponseDefaults(t *testing.T) {
	s, b := wiredStore(t)

	// Omitted conversation and role fall back to the default
	// conversation and the agent role.
	b.Publish(protocol.TypeChatResponse, json.RawMessage(
		`{"message_id":"m2","content":"no addressing"}`))

	msgs := s.Messages("default")
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleAgent, msgs[0].Role)
}

func TestWireMalformedPayloadIsDiscarded(t *testing.T) {
	s, b := wiredStore(t)

	b.Publish(protocol.TypeChatResponse, json.RawMessage(`{"content": 12`))
	b.Publish(protocol.TypeSystemMetrics, json.RawMessage(`"not an object"`))

	assert.Empty(t, s.Messages("default"))
	_, ok := s.Metrics()
	assert.False(t, ok)
}

func TestWireUnknownFieldsAreIgnored(t *testing.T) {
	s, b := wiredStore(t)

	b.Publish(protocol.TypeReasoningUpdate, json.RawMessage(
		`{"active":true,"mode":"deep","future_field":{"nested":1}}`))

	snap := s.Reasoning()
	assert.True(t, snap.Active)
	assert.Equal(t, "deep", snap.Mode)
}

func TestWireReasoningLifecycle(t *testing.T) {
	s, b := wiredStore(t)

	b.Publish(protocol.TypeReasoningUpdate, json.RawMessage(
		`{"active":true,"thoughts":[{"id":"root","content":"start"}]}`))
	b.Publish(protocol.TypeReasoningComplete, json.RawMessage(
		`{"conclusion":"answer","confidence":0.8,"elapsed_ms":1200}`))

	snap := s.Reasoning()
	assert.False(t, snap.Active)
	assert.Equal(t, "answer", snap.Conclusion)
	require.Len(t, snap.Thoughts, 1)
}

func TestWireEvolutionProgress(t *testing.T) {
	s, b := wiredStore(t)

	b.Publish(protocol.TypeEvolutionProgress, json.RawMessage(
		`{"generation":2,"max_generations":20,"fitness":{"generation":2,"best":0.5,"mean":0.3}}`))
	b.Publish(protocol.TypeEvolutionProgress, json.RawMessage(`{"generation":3}`))

	snap := s.Evolution()
	assert.True(t, snap.Running)
	assert.Equal(t, 3, snap.Generation)
	assert.Equal(t, 20, snap.MaxGenerations)
	require.Len(t, snap.Fitness, 1)
}

func TestWireServerRegistry(t *testing.T) {
	s, b := wiredStore(t)

	b.Publish(protocol.TypeMCPServerStatus, json.RawMessage(
		`{"server_id":"fs","name":"filesystem","status":"running","tools":9}`))
	b.Publish(protocol.TypeMCPServerHealth, json.RawMessage(
		`{"server_id":"fs","healthy":true,"latency_ms":17}`))

	rec, ok := s.Server("fs")
	require.True(t, ok)
	assert.Equal(t, "filesystem", rec.Name)
	assert.Equal(t, "running", rec.Status)
	assert.True(t, rec.Healthy)
	assert.Equal(t, int64(17), rec.LatencyMs)
}

func TestWireErrorEventBecomesAlert(t *testing.T) {
	s, b := wiredStore(t)

	b.Publish(protocol.TypeError, json.RawMessage(
		`{"code":"E42","message":"orchestrator failure"}`))

	alerts := s.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "error", alerts[0].Level)
	assert.Equal(t, "orchestrator failure", alerts[0].Message)
}

func TestWireCoversInboundVocabulary(t *testing.T) {
	_, b := wiredStore(t)

	for _, typ := range []string{
		protocol.TypeChatResponse, protocol.TypeTypingIndicator,
		protocol.TypeReasoningUpdate, protocol.TypeReasoningComplete,
		protocol.TypeEvolutionProgress, protocol.TypeEvolutionComplete,
		protocol.TypeSystemMetrics, protocol.TypeSystemAlert,
		protocol.TypeMCPServerStatus, protocol.TypeMCPServerHealth,
		protocol.TypeOllamaStatus, protocol.TypeOllamaModelUpdate,
		protocol.TypeOllamaMetrics, protocol.TypeOllamaError,
		protocol.TypeError,
	} {
		assert.NotZero(t, b.HandlerCount(typ), "no handler for %s", typ)
	}
}
