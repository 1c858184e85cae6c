package protocol

import "encoding/json"

// Payloads for recognized event types. Inbound payloads are validated
// at the parse boundary; internal code never touches untyped data past
// this package. Fields that participate in partial-merge snapshots use
// pointer types so an absent field is distinguishable from a zero one.

// MessageMetadata carries optional per-message annotations.
type MessageMetadata struct {
	ReasoningMode string  `json:"reasoning_mode,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	DurationMs    int64   `json:"duration_ms,omitempty"`
}

// ChatResponse is an agent/system message pushed into a conversation.
type ChatResponse struct {
	ConversationID string           `json:"conversation_id"`
	MessageID      string           `json:"message_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
}

// TypingIndicator signals that a user or agent started/stopped typing.
type TypingIndicator struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

// ThoughtNode is one node in the reasoning tree. ParentID is empty for
// roots; a node may not reference itself or a descendant as parent.
type ThoughtNode struct {
	ID         string  `json:"id"`
	ParentID   string  `json:"parent_id,omitempty"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ReasoningUpdate is a partial-merge update of the reasoning snapshot.
// The thought list, when present, replaces the previous list wholesale.
type ReasoningUpdate struct {
	Active     *bool         `json:"active,omitempty"`
	Mode       *string       `json:"mode,omitempty"`
	Thoughts   []ThoughtNode `json:"thoughts,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
	ElapsedMs  *int64        `json:"elapsed_ms,omitempty"`
}

// ReasoningComplete ends the active reasoning session.
type ReasoningComplete struct {
	Conclusion string  `json:"conclusion"`
	Confidence float64 `json:"confidence"`
	ElapsedMs  int64   `json:"elapsed_ms"`
}

// FitnessSample is one generation's fitness reading.
type FitnessSample struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Mean       float64 `json:"mean"`
}

// EvolutionProgress is a partial-merge update of the evolution snapshot.
type EvolutionProgress struct {
	Generation     *int           `json:"generation,omitempty"`
	MaxGenerations *int           `json:"max_generations,omitempty"`
	Fitness        *FitnessSample `json:"fitness,omitempty"`
	Converged      *bool          `json:"converged,omitempty"`
}

// EvolutionComplete ends the active evolution run.
type EvolutionComplete struct {
	Generation  int             `json:"generation"`
	BestFitness float64         `json:"best_fitness"`
	Recipe      json.RawMessage `json:"recipe,omitempty"`
}

// SystemMetrics is a complete point-in-time sample; it replaces the
// previous metrics snapshot entirely.
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	ActiveAgents  int     `json:"active_agents"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CollectedAt   int64   `json:"collected_at"`
}

// SystemAlert is an operator-facing notification.
type SystemAlert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// MCPServerStatus is a keyed-upsert update for one MCP server record.
type MCPServerStatus struct {
	ServerID string  `json:"server_id"`
	Status   *string `json:"status,omitempty"`
	Name     *string `json:"name,omitempty"`
	Tools    *int    `json:"tools,omitempty"`
}

// MCPServerHealth is a keyed-upsert health update for one MCP server.
type MCPServerHealth struct {
	ServerID  string `json:"server_id"`
	Healthy   *bool  `json:"healthy,omitempty"`
	LatencyMs *int64 `json:"latency_ms,omitempty"`
}

// OllamaStatus is a partial-merge update of the ollama runtime state.
type OllamaStatus struct {
	Running *bool   `json:"running,omitempty"`
	Version *string `json:"version,omitempty"`
}

// OllamaModel describes one locally available model.
type OllamaModel struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	Loaded    bool   `json:"loaded,omitempty"`
}

// OllamaModelUpdate replaces the model list wholesale.
type OllamaModelUpdate struct {
	Models []OllamaModel `json:"models"`
}

// OllamaMetrics is a full-replace runtime metrics sample.
type OllamaMetrics struct {
	TokensPerSecond float64 `json:"tokens_per_second"`
	LoadedModels    int     `json:"loaded_models"`
	VRAMUsedBytes   int64   `json:"vram_used_bytes"`
}

// OllamaError reports a runtime failure from the ollama backend.
type OllamaError struct {
	Message string `json:"message"`
}

// ServerError is the server-side error event ("error" type).
type ServerError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Outbound payloads. Every intent carries a client-side timestamp in
// unix milliseconds; the server never depends on client clocks beyond
// display ordering.

// PingPayload is the liveness probe.
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ChatMessagePayload sends a user-authored chat message.
type ChatMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}

// StartReasoningPayload starts a reasoning session.
type StartReasoningPayload struct {
	Problem   string `json:"problem"`
	Mode      string `json:"mode,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// StopReasoningPayload stops the active reasoning session.
type StopReasoningPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// StartEvolutionPayload starts an evolutionary recipe run.
type StartEvolutionPayload struct {
	Recipe         string `json:"recipe,omitempty"`
	PopulationSize int    `json:"population_size,omitempty"`
	MaxGenerations int    `json:"max_generations,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// StopEvolutionPayload stops the active evolution run.
type StopEvolutionPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// RequestSystemMetricsPayload asks for a metrics sample.
type RequestSystemMetricsPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// MCPServerActionPayload manages one MCP server (start/stop/restart).
type MCPServerActionPayload struct {
	ServerID  string `json:"server_id"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}
