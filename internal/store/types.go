package store

import (
	"time"

	"nerddash/internal/protocol"

	"github.com/google/uuid"
)

// Role tags the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAgent     Role = "agent"
	RoleSystem    Role = "system"
	RoleReasoning Role = "reasoning"
	RoleEvolution Role = "evolution"
)

// Message is one entry in a conversation. IDs are client-generated for
// outbound messages and server-supplied for inbound ones.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Metadata  *protocol.MessageMetadata
	CreatedAt time.Time
}

// NewMessage mints a client-authored message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// MessagePatch is a partial update applied by UpdateMessage. Only
// non-nil fields overlay the existing message.
type MessagePatch struct {
	Content  *string
	Metadata *protocol.MessageMetadata
}

// ReasoningSnapshot is the single active reasoning instance. Thought
// nodes form a tree; updates replace the node list wholesale.
type ReasoningSnapshot struct {
	Active     bool
	Mode       string
	Thoughts   []protocol.ThoughtNode
	Confidence float64
	Elapsed    time.Duration
	Conclusion string
}

// EvolutionSnapshot is the single active evolution instance. Generation
// is monotonically non-decreasing while running; fitness history is
// append-only, keyed by generation.
type EvolutionSnapshot struct {
	Running        bool
	Generation     int
	MaxGenerations int
	Fitness        []protocol.FitnessSample
	Converged      bool
	BestFitness    float64
}

// MetricsSnapshot wraps the latest full-replace system metrics sample.
type MetricsSnapshot struct {
	protocol.SystemMetrics
	ReceivedAt time.Time
}

// ServerRecord is one entry in the MCP server registry.
type ServerRecord struct {
	ID        string
	Name      string
	Status    string
	Healthy   bool
	LatencyMs int64
	Tools     int
	LastSeen  time.Time
}

// OllamaSnapshot tracks the local model runtime.
type OllamaSnapshot struct {
	Running   bool
	Version   string
	Models    []protocol.OllamaModel
	Metrics   protocol.OllamaMetrics
	LastError string
}

// Alert is one retained system alert.
type Alert struct {
	Level      string
	Message    string
	ReceivedAt time.Time
}

// Stats summarizes store contents.
type Stats struct {
	Conversations int
	Messages      int
	Servers       int
	TypingUsers   int
	Alerts        int
}
