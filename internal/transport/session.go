// Package transport owns the one physical WebSocket connection to the
// orchestrator: lifecycle, keepalive, and capped exponential backoff
// reconnection. Inbound envelopes are parsed here and republished on
// the event bus under their own type name; no error in this layer
// propagates to callers as an unhandled fault.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"nerddash/internal/bus"
	"nerddash/internal/config"
	"nerddash/internal/logging"
	"nerddash/internal/protocol"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosing      State = "closing"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Bus event types emitted by the session itself.
const (
	EventConnectionStatus   = "connection_status"
	EventReconnectExhausted = "reconnect_exhausted"
)

// ConnectivityStatus is the status surface exposed to collaborators.
type ConnectivityStatus struct {
	Connected         bool `json:"connected"`
	ReconnectAttempts int  `json:"reconnectAttempts"`
	IsConnecting      bool `json:"isConnecting"`
}

// ReconnectExhausted is the terminal event payload emitted exactly once
// after the reconnection attempt cap is exceeded.
type ReconnectExhausted struct {
	Attempts int `json:"attempts"`
}

// ErrConnectSuperseded is returned when a dial completes after a clean
// disconnect happened in the interim; disconnect wins and the new
// connection is discarded.
var ErrConnectSuperseded = errors.New("connection attempt superseded by disconnect")

// Session owns exactly one physical connection at a time.
// The handle is never exposed by reference; consumers use Status.
type Session struct {
	mu  sync.Mutex
	cfg *config.Config
	bus *bus.Bus

	state      State
	conn       *websocket.Conn
	endpoint   string
	attempts   int
	generation uint64
	exhausted  bool

	reconnectTimer *time.Timer
	pingStop       chan struct{}

	dialer *websocket.Dialer
	flight singleflight.Group

	// Serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// NewSession creates a Session publishing inbound events on b.
func NewSession(cfg *config.Config, b *bus.Bus) *Session {
	return &Session{
		cfg:    cfg,
		bus:    b,
		state:  StateIdle,
		dialer: websocket.DefaultDialer,
	}
}

// UpdateConfig swaps the live config (hot reload). The new reconnect
// policy applies to the next cycle, never to a timer already scheduled.
func (s *Session) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logging.Transport("config updated (max_attempts=%d base_delay=%s)",
		cfg.Reconnect.MaxAttempts, cfg.Reconnect.BaseDelay)
}

// Connect establishes the connection. Idempotent while Open. Concurrent
// calls for the same endpoint coalesce onto a single in-flight dial;
// a call with a different endpoint dials independently and whichever
// dial commits first wins. endpoint may be empty; resolution order is
// explicit argument, configured endpoint, endpoint derived from the
// configured origin.
//
// Failure is not fatal: the caller is expected to operate in degraded
// mode and either retry or rely on a later explicit Connect.
func (s *Session) Connect(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	if s.state == StateOpen {
		s.mu.Unlock()
		return nil
	}
	// An explicit connect takes over from any pending reconnect cycle
	// and starts a fresh attempt count.
	s.cancelReconnectLocked()
	s.attempts = 0
	s.exhausted = false
	resolved, err := s.cfg.ResolveEndpoint(endpoint)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	_, err, _ = s.flight.Do("connect:"+resolved, func() (interface{}, error) {
		return nil, s.dial(ctx, resolved)
	})
	return err
}

// dial performs one physical connection attempt.
func (s *Session) dial(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	if s.state == StateOpen {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	s.state = StateConnecting
	dialTimeout := s.cfg.GetDialTimeout()
	s.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := s.dialer.DialContext(dctx, endpoint, nil)
	if err != nil {
		s.mu.Lock()
		if gen == s.generation && s.state == StateConnecting {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s.mu.Lock()
	if gen != s.generation || s.state == StateOpen {
		// Either a clean disconnect happened while dialing (disconnect
		// wins) or another dial already committed; this one loses.
		s.mu.Unlock()
		_ = conn.Close()
		logging.Transport("discarding stale connection to %s", endpoint)
		return ErrConnectSuperseded
	}
	s.conn = conn
	s.endpoint = endpoint
	s.state = StateOpen
	s.attempts = 0
	stop := make(chan struct{})
	s.pingStop = stop
	pingInterval := s.cfg.GetPingInterval()
	s.mu.Unlock()

	go s.readLoop(conn, gen)
	go s.pingLoop(stop, pingInterval)

	logging.Transport("connected to %s", endpoint)
	s.publishStatus()

	// Liveness probe; the pong reply is consumed internally.
	s.Send(protocol.TypePing, protocol.PingPayload{Timestamp: time.Now().UnixMilli()})

	return nil
}

// Disconnect initiates a clean close and clears all registered
// subscriptions; a fresh Connect starts with no listeners.
// It also cancels any pending reconnection timer.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	s.generation++
	s.cancelReconnectLocked()
	s.stopPingLocked()

	conn := s.conn
	s.conn = nil
	if conn != nil {
		s.state = StateClosing
	}
	s.attempts = 0
	s.exhausted = false
	s.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		deadline := time.Now().Add(time.Second)
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		s.writeMu.Unlock()
		_ = conn.Close()
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	s.bus.Clear()
	logging.Transport("disconnected (clean close)")
	return nil
}

// Send marshals an envelope and writes it. When the session is not
// Open the send is a warned no-op, never an error: outbound intents
// must not crash the caller when offline.
func (s *Session) Send(eventType string, payload interface{}) {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()

	if !open || conn == nil {
		logging.TransportWarn("send %q dropped: not connected", eventType)
		return
	}

	raw, err := protocol.Encode(eventType, payload)
	if err != nil {
		logging.TransportWarn("send %q dropped: %v", eventType, err)
		return
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, raw)
	s.writeMu.Unlock()
	if err != nil {
		// The read loop observes the broken connection and handles
		// reconnection; the sender only logs.
		logging.TransportWarn("write %q failed: %v", eventType, err)
		return
	}
	logging.TransportDebug("sent %q (%d bytes)", eventType, len(raw))
}

// IsConnected is a pure synchronous query of lifecycle state.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen
}

// Status returns the connectivity surface exposed to collaborators.
func (s *Session) Status() ConnectivityStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ConnectivityStatus{
		Connected:         s.state == StateOpen,
		ReconnectAttempts: s.attempts,
		IsConnecting:      s.state == StateConnecting || s.state == StateReconnecting,
	}
}

// CurrentState returns the lifecycle state.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// readLoop processes inbound frames in delivery order until the
// connection closes. Nothing thrown out of the receive path: parse
// failures and unknown types are logged and discarded.
func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(gen, err)
			return
		}

		env, err := protocol.Decode(raw)
		if err != nil {
			logging.TransportWarn("discarding inbound frame: %v", err)
			continue
		}

		if env.Type == protocol.TypePong {
			// Liveness reply, consumed internally.
			logging.TransportDebug("pong received")
			continue
		}

		if !protocol.Known(env.Type) {
			logging.TransportWarn("dropping unrecognized envelope type %q", env.Type)
			continue
		}

		s.bus.Publish(env.Type, env.Data)
	}
}

// handleClose reacts to the read loop ending. A close belonging to a
// superseded generation was already handled by Disconnect.
func (s *Session) handleClose(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}

	logging.TransportWarn("connection lost: %v", err)
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.stopPingLocked()
	s.scheduleReconnectLocked()
	s.mu.Unlock()

	s.publishStatus()
}

// scheduleReconnectLocked arms the next backoff timer, or emits the
// terminal exhaustion event once the attempt cap is exceeded.
// Caller holds s.mu.
func (s *Session) scheduleReconnectLocked() {
	s.attempts++
	maxAttempts := s.cfg.Reconnect.MaxAttempts
	if s.attempts > maxAttempts {
		s.attempts = maxAttempts
		s.state = StateFailed
		if !s.exhausted {
			s.exhausted = true
			logging.TransportError("reconnection exhausted after %d attempts", maxAttempts)
			go s.publishExhausted(maxAttempts)
		}
		return
	}

	s.state = StateReconnecting
	delay := s.cfg.GetBaseDelay() << (s.attempts - 1)
	gen := s.generation
	attempt := s.attempts
	logging.Transport("reconnect attempt %d/%d in %s", attempt, maxAttempts, delay)

	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.reconnect(gen)
	})
}

// reconnect performs one scheduled reconnection attempt.
func (s *Session) reconnect(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateReconnecting {
		s.mu.Unlock()
		return
	}
	endpoint := s.endpoint
	s.mu.Unlock()

	// Share the singleflight key with Connect so at most one dial per
	// endpoint is outstanding; an explicit connect to a different
	// endpoint proceeds independently and its commit wins.
	_, err, _ := s.flight.Do("connect:"+endpoint, func() (interface{}, error) {
		return nil, s.dial(context.Background(), endpoint)
	})
	if err == nil || errors.Is(err, ErrConnectSuperseded) {
		return
	}

	s.mu.Lock()
	if gen == s.generation {
		s.scheduleReconnectLocked()
	}
	s.mu.Unlock()
}

// cancelReconnectLocked stops a pending reconnect timer. Caller holds s.mu.
func (s *Session) cancelReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// stopPingLocked stops the keepalive loop. Caller holds s.mu.
func (s *Session) stopPingLocked() {
	if s.pingStop != nil {
		close(s.pingStop)
		s.pingStop = nil
	}
}

// pingLoop sends a liveness probe every interval while the connection
// is open.
func (s *Session) pingLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Send(protocol.TypePing, protocol.PingPayload{Timestamp: time.Now().UnixMilli()})
		}
	}
}

// publishStatus emits the connectivity event on the bus.
func (s *Session) publishStatus() {
	data, err := json.Marshal(s.Status())
	if err != nil {
		logging.TransportWarn("status event marshal failed: %v", err)
		return
	}
	s.bus.Publish(EventConnectionStatus, data)
}

func (s *Session) publishExhausted(attempts int) {
	data, err := json.Marshal(ReconnectExhausted{Attempts: attempts})
	if err != nil {
		return
	}
	s.bus.Publish(EventReconnectExhausted, data)
}
