// Package intent contains the thin, stateless senders that turn user
// intents into outbound envelopes. At-most-once, fire-and-forget: no
// retries, no acknowledgment tracking. Any confirmation arrives later
// as an ordinary inbound event.
package intent

import (
	"time"

	"nerddash/internal/logging"
	"nerddash/internal/protocol"
	"nerddash/internal/store"
)

// Transport is the outbound surface the senders need. Sends are safe
// while offline; the session drops them with a warning.
type Transport interface {
	Send(eventType string, payload interface{})
	IsConnected() bool
}

// Sender builds and sends intent envelopes over a transport session.
type Sender struct {
	transport Transport
}

// NewSender creates a Sender bound to a transport session.
func NewSender(t Transport) *Sender {
	return &Sender{transport: t}
}

func now() int64 {
	return time.Now().UnixMilli()
}

// Ping sends a liveness probe.
func (s *Sender) Ping() {
	s.transport.Send(protocol.TypePing, protocol.PingPayload{Timestamp: now()})
}

// SendChatMessage sends a user chat message and returns the minted
// message so the caller can optimistically append it to the store
// before server acknowledgment.
func (s *Sender) SendChatMessage(conversationID, content string) store.Message {
	msg := store.NewMessage(store.RoleUser, content)
	if !s.transport.IsConnected() {
		logging.IntentWarn("chat message %s queued locally only: offline", msg.ID)
	}
	s.transport.Send(protocol.TypeChatMessage, protocol.ChatMessagePayload{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Content:        content,
		Timestamp:      now(),
	})
	return msg
}

// StartReasoning asks the orchestrator to begin a reasoning session.
func (s *Sender) StartReasoning(problem, mode string) {
	s.transport.Send(protocol.TypeStartReasoning, protocol.StartReasoningPayload{
		Problem:   problem,
		Mode:      mode,
		Timestamp: now(),
	})
}

// StopReasoning stops the active reasoning session.
func (s *Sender) StopReasoning() {
	s.transport.Send(protocol.TypeStopReasoning, protocol.StopReasoningPayload{Timestamp: now()})
}

// StartEvolution starts an evolutionary recipe run.
func (s *Sender) StartEvolution(recipe string, populationSize, maxGenerations int) {
	s.transport.Send(protocol.TypeStartEvolution, protocol.StartEvolutionPayload{
		Recipe:         recipe,
		PopulationSize: populationSize,
		MaxGenerations: maxGenerations,
		Timestamp:      now(),
	})
}

// StopEvolution stops the active evolution run.
func (s *Sender) StopEvolution() {
	s.transport.Send(protocol.TypeStopEvolution, protocol.StopEvolutionPayload{Timestamp: now()})
}

// RequestSystemMetrics asks for a fresh metrics sample.
func (s *Sender) RequestSystemMetrics() {
	s.transport.Send(protocol.TypeRequestSystemMetrics, protocol.RequestSystemMetricsPayload{Timestamp: now()})
}

// ServerAction manages one MCP server (start, stop, restart).
func (s *Sender) ServerAction(serverID, action string) {
	s.transport.Send(protocol.TypeMCPServerAction, protocol.MCPServerActionPayload{
		ServerID:  serverID,
		Action:    action,
		Timestamp: now(),
	})
}
