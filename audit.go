package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is a single security-relevant occurrence emitted by the engine. Events are
// observational only: no flow outcome ever depends on an event being recorded.
//
// AuditEvent instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	ErrorCode AuditErrorCode    `json:"error_code,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the engine's dispatcher. Emit is called from a
// single dispatcher goroutine; implementations may block briefly but must not panic.
// A slow sink causes event drops (when DropIfFull is set), never request latency.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink defines a public type used by authcore APIs.
//
// NoOpSink instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type NoOpSink struct{}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a caller-owned channel, dropping when the channel is
// full.
type ChannelSink struct {
	C chan AuditEvent
}

// NewChannelSink describes the new channel sink operation and its observable behavior.
//
// NewChannelSink does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{C: make(chan AuditEvent, buffer)}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *ChannelSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.C == nil {
		return
	}
	select {
	case s.C <- event:
	default:
	}
}

// JSONWriterSink writes one JSON object per line to an io.Writer. Marshal or write
// failures are silently dropped; an audit sink never propagates errors into flows.
type JSONWriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONWriterSink describes the new json writer sink operation and its observable behavior.
//
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.w == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	payload = append(payload, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(payload)
}
