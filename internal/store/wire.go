package store

import (
	"encoding/json"

	"nerddash/internal/bus"
	"nerddash/internal/logging"
	"nerddash/internal/protocol"
)

// Wire subscribes the store's mutators to every recognized inbound
// event type. Payloads are decoded into typed structs at this boundary;
// a malformed payload is logged and discarded and never affects
// connection state. Remember that Disconnect clears the bus, so Wire
// must be called again after a reconnect-from-scratch.
func (s *Store) Wire(b *bus.Bus) {
	b.Subscribe(protocol.TypeChatResponse, decode(func(p protocol.ChatResponse) {
		conv := p.ConversationID
		if conv == "" {
			conv = "default"
		}
		role := Role(p.Role)
		if role == "" {
			role = RoleAgent
		}
		s.AddMessage(conv, Message{
			ID:       p.MessageID,
			Role:     role,
			Content:  p.Content,
			Metadata: p.Metadata,
		})
	}))

	b.Subscribe(protocol.TypeTypingIndicator, decode(func(p protocol.TypingIndicator) {
		s.SetTyping(p.UserID, p.Typing)
	}))

	b.Subscribe(protocol.TypeReasoningUpdate, decode(s.ApplyReasoningUpdate))
	b.Subscribe(protocol.TypeReasoningComplete, decode(s.CompleteReasoning))
	b.Subscribe(protocol.TypeEvolutionProgress, decode(s.ApplyEvolutionProgress))
	b.Subscribe(protocol.TypeEvolutionComplete, decode(s.CompleteEvolution))
	b.Subscribe(protocol.TypeSystemMetrics, decode(s.SetMetrics))
	b.Subscribe(protocol.TypeSystemAlert, decode(s.AddAlert))
	b.Subscribe(protocol.TypeMCPServerStatus, decode(s.ApplyServerStatus))
	b.Subscribe(protocol.TypeMCPServerHealth, decode(s.ApplyServerHealth))
	b.Subscribe(protocol.TypeOllamaStatus, decode(s.ApplyOllamaStatus))
	b.Subscribe(protocol.TypeOllamaModelUpdate, decode(s.ApplyOllamaModels))
	b.Subscribe(protocol.TypeOllamaMetrics, decode(s.ApplyOllamaMetrics))
	b.Subscribe(protocol.TypeOllamaError, decode(s.SetOllamaError))

	b.Subscribe(protocol.TypeError, decode(func(p protocol.ServerError) {
		s.AddAlert(protocol.SystemAlert{Level: "error", Message: p.Message})
	}))
}

// decode adapts a typed mutator into a bus handler. Decode failures are
// recovered locally: logged and discarded.
func decode[T any](apply func(T)) bus.Handler {
	return func(data json.RawMessage) {
		var payload T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &payload); err != nil {
				logging.StoreWarn("discarding malformed payload: %v", err)
				return
			}
		}
		apply(payload)
	}
}
