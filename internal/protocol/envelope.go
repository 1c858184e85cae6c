// Package protocol defines the wire protocol between the dashboard
// client and the orchestrator: a single envelope shape in both
// directions with a fixed vocabulary of event types.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the sole wire unit in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound event types (server -> client).
const (
	TypeChatResponse       = "chat_response"
	TypeTypingIndicator    = "typing_indicator"
	TypeReasoningUpdate    = "reasoning_update"
	TypeReasoningComplete  = "reasoning_complete"
	TypeEvolutionProgress  = "evolution_progress"
	TypeEvolutionComplete  = "evolution_complete"
	TypeSystemMetrics      = "system_metrics"
	TypeSystemAlert        = "system_alert"
	TypeMCPServerStatus    = "mcp_server_status"
	TypeMCPServerHealth    = "mcp_server_health"
	TypeOllamaStatus       = "ollama_status"
	TypeOllamaModelUpdate  = "ollama_model_update"
	TypeOllamaMetrics      = "ollama_metrics"
	TypeOllamaError        = "ollama_error"
	TypePong               = "pong"
	TypeError              = "error"
)

// Outbound event types (client -> server).
const (
	TypePing                 = "ping"
	TypeChatMessage          = "chat_message"
	TypeStartReasoning       = "start_reasoning"
	TypeStopReasoning        = "stop_reasoning"
	TypeStartEvolution       = "start_evolution"
	TypeStopEvolution        = "stop_evolution"
	TypeRequestSystemMetrics = "request_system_metrics"
	TypeMCPServerAction      = "mcp_server_action"
)

var inboundTypes = map[string]bool{
	TypeChatResponse:      true,
	TypeTypingIndicator:   true,
	TypeReasoningUpdate:   true,
	TypeReasoningComplete: true,
	TypeEvolutionProgress: true,
	TypeEvolutionComplete: true,
	TypeSystemMetrics:     true,
	TypeSystemAlert:       true,
	TypeMCPServerStatus:   true,
	TypeMCPServerHealth:   true,
	TypeOllamaStatus:      true,
	TypeOllamaModelUpdate: true,
	TypeOllamaMetrics:     true,
	TypeOllamaError:       true,
	TypePong:              true,
	TypeError:             true,
}

// Known reports whether t is a recognized inbound event type.
// Unrecognized inbound types are dropped with a diagnostic, never fatal.
func Known(t string) bool {
	return inboundTypes[t]
}

// Decode parses a raw frame into an Envelope.
// An envelope with an empty type is invalid.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// Encode builds the wire bytes for an outbound envelope.
func Encode(typ string, payload interface{}) ([]byte, error) {
	if typ == "" {
		return nil, fmt.Errorf("envelope type required")
	}
	env := Envelope{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}
