// Package store is the single source of truth for client-visible
// state. It absorbs server-pushed events from the event bus into
// queryable snapshots and exposes imperative mutators for local
// intents (e.g. optimistic append of an outbound chat message).
//
// Mutators are synchronous and side-effect-free beyond the snapshot
// update: no I/O, no dispatch back to the transport. Selectors return
// copies, never interior references.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"nerddash/internal/logging"
	"nerddash/internal/protocol"
)

var (
	errEmptyThoughtID = errors.New("thought node missing id")
	errSelfParent     = errors.New("thought node references itself as parent")
	errThoughtCycle   = errors.New("thought parent chain forms a cycle")
)

// maxRetainedAlerts bounds the system alert ring.
const maxRetainedAlerts = 100

// Store holds all domain snapshots for the process lifetime.
type Store struct {
	mu sync.RWMutex

	conversations map[string][]Message
	typing        map[string]struct{}
	reasoning     ReasoningSnapshot
	evolution     EvolutionSnapshot
	metrics       *MetricsSnapshot
	servers       map[string]ServerRecord
	ollama        OllamaSnapshot
	alerts        []Alert
}

// New creates a Store with default snapshots and an empty "default"
// conversation.
func New() *Store {
	return &Store{
		conversations: map[string][]Message{"default": {}},
		typing:        make(map[string]struct{}),
		servers:       make(map[string]ServerRecord),
	}
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

// AddMessage appends a message to a conversation, creating the
// conversation if absent. Append-only: existing messages are never
// overwritten, and insertion order is the display order.
func (s *Store) AddMessage(conversationID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], msg)
}

// UpdateMessage overlays only the non-nil patch fields onto the message
// with the given id. No-op when the id is absent; reports whether a
// message was updated.
func (s *Store) UpdateMessage(conversationID, id string, patch MessagePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[conversationID]
	for i := range msgs {
		if msgs[i].ID != id {
			continue
		}
		if patch.Content != nil {
			msgs[i].Content = *patch.Content
		}
		if patch.Metadata != nil {
			msgs[i].Metadata = patch.Metadata
		}
		return true
	}
	return false
}

// ClearConversation truncates a conversation's history. This is the
// only way a conversation shrinks.
func (s *Store) ClearConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; ok {
		s.conversations[conversationID] = nil
	}
}

// Messages returns a copy of a conversation's messages in insertion
// order.
func (s *Store) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Conversations returns the known conversation ids, sorted.
func (s *Store) Conversations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// Typing indicators
// ---------------------------------------------------------------------------

// SetTyping records that a user started or stopped typing.
func (s *Store) SetTyping(userID string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typing {
		s.typing[userID] = struct{}{}
	} else {
		delete(s.typing, userID)
	}
}

// AnyoneTyping reports presence, not count; that is the signal
// consumers read.
func (s *Store) AnyoneTyping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.typing) > 0
}

// TypingUsers returns the ids currently typing, sorted.
func (s *Store) TypingUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.typing))
	for id := range s.typing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// Reasoning
// ---------------------------------------------------------------------------

// ApplyReasoningUpdate shallow-merges the fields present in the update.
// The thought list, when present, replaces the previous list wholesale
// after tree validation; an invalid tree keeps the previous thoughts.
func (s *Store) ApplyReasoningUpdate(u protocol.ReasoningUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Active != nil {
		s.reasoning.Active = *u.Active
	}
	if u.Mode != nil {
		s.reasoning.Mode = *u.Mode
	}
	if u.Thoughts != nil {
		if err := validateThoughtTree(u.Thoughts); err != nil {
			logging.StoreWarn("rejecting thought update: %v", err)
		} else {
			thoughts := make([]protocol.ThoughtNode, len(u.Thoughts))
			copy(thoughts, u.Thoughts)
			s.reasoning.Thoughts = thoughts
		}
	}
	if u.Confidence != nil {
		s.reasoning.Confidence = *u.Confidence
	}
	if u.ElapsedMs != nil {
		s.reasoning.Elapsed = time.Duration(*u.ElapsedMs) * time.Millisecond
	}
}

// CompleteReasoning finalizes the active session.
func (s *Store) CompleteReasoning(c protocol.ReasoningComplete) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasoning.Active = false
	s.reasoning.Conclusion = c.Conclusion
	s.reasoning.Confidence = c.Confidence
	s.reasoning.Elapsed = time.Duration(c.ElapsedMs) * time.Millisecond
}

// ResetReasoning restores the reasoning snapshot to its defaults,
// discarding history.
func (s *Store) ResetReasoning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasoning = ReasoningSnapshot{}
}

// Reasoning returns a copy of the reasoning snapshot.
func (s *Store) Reasoning() ReasoningSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.reasoning
	snap.Thoughts = make([]protocol.ThoughtNode, len(s.reasoning.Thoughts))
	copy(snap.Thoughts, s.reasoning.Thoughts)
	return snap
}

// validateThoughtTree rejects node lists where a node references itself
// or one of its descendants as parent (i.e. any parent cycle).
func validateThoughtTree(nodes []protocol.ThoughtNode) error {
	parents := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return errEmptyThoughtID
		}
		if n.ParentID == n.ID {
			return errSelfParent
		}
		parents[n.ID] = n.ParentID
	}
	for id := range parents {
		seen := map[string]bool{id: true}
		for cur := parents[id]; cur != ""; cur = parents[cur] {
			if seen[cur] {
				return errThoughtCycle
			}
			seen[cur] = true
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Evolution
// ---------------------------------------------------------------------------

// ApplyEvolutionProgress shallow-merges the fields present in the
// update. Generation is monotonically non-decreasing while running;
// a regressive generation is dropped with a diagnostic. A fitness
// sample is appended keyed by its generation.
func (s *Store) ApplyEvolutionProgress(p protocol.EvolutionProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evolution.Running = true
	if p.Generation != nil {
		if *p.Generation < s.evolution.Generation {
			logging.StoreWarn("dropping regressive generation %d (current %d)",
				*p.Generation, s.evolution.Generation)
		} else {
			s.evolution.Generation = *p.Generation
		}
	}
	if p.MaxGenerations != nil {
		s.evolution.MaxGenerations = *p.MaxGenerations
	}
	if p.Fitness != nil {
		s.evolution.Fitness = append(s.evolution.Fitness, *p.Fitness)
		if p.Fitness.Best > s.evolution.BestFitness {
			s.evolution.BestFitness = p.Fitness.Best
		}
	}
	if p.Converged != nil {
		s.evolution.Converged = *p.Converged
	}
}

// CompleteEvolution finalizes the active run.
func (s *Store) CompleteEvolution(c protocol.EvolutionComplete) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evolution.Running = false
	if c.Generation >= s.evolution.Generation {
		s.evolution.Generation = c.Generation
	}
	if c.BestFitness > s.evolution.BestFitness {
		s.evolution.BestFitness = c.BestFitness
	}
}

// ResetEvolution restores the evolution snapshot to its defaults,
// discarding history.
func (s *Store) ResetEvolution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evolution = EvolutionSnapshot{}
}

// Evolution returns a copy of the evolution snapshot.
func (s *Store) Evolution() EvolutionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.evolution
	snap.Fitness = make([]protocol.FitnessSample, len(s.evolution.Fitness))
	copy(snap.Fitness, s.evolution.Fitness)
	return snap
}

// ---------------------------------------------------------------------------
// System metrics and alerts
// ---------------------------------------------------------------------------

// SetMetrics replaces the metrics snapshot entirely; a metrics event is
// a complete point-in-time sample, never a partial merge.
func (s *Store) SetMetrics(m protocol.SystemMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = &MetricsSnapshot{SystemMetrics: m, ReceivedAt: time.Now()}
}

// Metrics returns the latest sample, if any.
func (s *Store) Metrics() (MetricsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metrics == nil {
		return MetricsSnapshot{}, false
	}
	return *s.metrics, true
}

// AddAlert retains a system alert, dropping the oldest past the cap.
func (s *Store) AddAlert(a protocol.SystemAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, Alert{
		Level:      a.Level,
		Message:    a.Message,
		ReceivedAt: time.Now(),
	})
	if len(s.alerts) > maxRetainedAlerts {
		s.alerts = s.alerts[len(s.alerts)-maxRetainedAlerts:]
	}
}

// Alerts returns a copy of the retained alerts, oldest first.
func (s *Store) Alerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// ---------------------------------------------------------------------------
// Server registry
// ---------------------------------------------------------------------------

// ApplyServerStatus upserts one server record: unknown ids are
// inserted, known ids are partially merged.
func (s *Store) ApplyServerStatus(u protocol.MCPServerStatus) {
	if u.ServerID == "" {
		logging.StoreWarn("dropping server status without server_id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.servers[u.ServerID]
	rec.ID = u.ServerID
	if u.Status != nil {
		rec.Status = *u.Status
	}
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.Tools != nil {
		rec.Tools = *u.Tools
	}
	rec.LastSeen = time.Now()
	s.servers[u.ServerID] = rec
}

// ApplyServerHealth upserts health fields for one server record.
func (s *Store) ApplyServerHealth(u protocol.MCPServerHealth) {
	if u.ServerID == "" {
		logging.StoreWarn("dropping server health without server_id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.servers[u.ServerID]
	rec.ID = u.ServerID
	if u.Healthy != nil {
		rec.Healthy = *u.Healthy
	}
	if u.LatencyMs != nil {
		rec.LatencyMs = *u.LatencyMs
	}
	rec.LastSeen = time.Now()
	s.servers[u.ServerID] = rec
}

// Server returns one registry record by id.
func (s *Store) Server(id string) (ServerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.servers[id]
	return rec, ok
}

// Servers returns all registry records sorted by id.
func (s *Store) Servers() []ServerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ServerRecord, 0, len(s.servers))
	for _, rec := range s.servers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---------------------------------------------------------------------------
// Ollama runtime
// ---------------------------------------------------------------------------

// ApplyOllamaStatus shallow-merges the fields present in the update.
func (s *Store) ApplyOllamaStatus(u protocol.OllamaStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Running != nil {
		s.ollama.Running = *u.Running
	}
	if u.Version != nil {
		s.ollama.Version = *u.Version
	}
}

// ApplyOllamaModels replaces the model list wholesale.
func (s *Store) ApplyOllamaModels(u protocol.OllamaModelUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	models := make([]protocol.OllamaModel, len(u.Models))
	copy(models, u.Models)
	s.ollama.Models = models
}

// ApplyOllamaMetrics replaces the runtime metrics sample.
func (s *Store) ApplyOllamaMetrics(m protocol.OllamaMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ollama.Metrics = m
}

// SetOllamaError records the most recent backend failure.
func (s *Store) SetOllamaError(e protocol.OllamaError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ollama.LastError = e.Message
}

// Ollama returns a copy of the ollama snapshot.
func (s *Store) Ollama() OllamaSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.ollama
	snap.Models = make([]protocol.OllamaModel, len(s.ollama.Models))
	copy(snap.Models, s.ollama.Models)
	return snap
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats summarizes store contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, msgs := range s.conversations {
		total += len(msgs)
	}
	return Stats{
		Conversations: len(s.conversations),
		Messages:      total,
		Servers:       len(s.servers),
		TypingUsers:   len(s.typing),
		Alerts:        len(s.alerts),
	}
}
