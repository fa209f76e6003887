package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Severity grades a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AuthEvent records one authentication attempt or account operation.
type AuthEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	Kind           string    `json:"kind"`
	UserID         string    `json:"user_id,omitempty"`
	Username       string    `json:"username,omitempty"`
	Email          string    `json:"email,omitempty"`
	Success        bool      `json:"success"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	IP             string    `json:"ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	TwoFactorUsed  bool      `json:"two_factor_used,omitempty"`
	BackupCodeUsed bool      `json:"backup_code_used,omitempty"`
}

// SecurityEvent records a security-relevant state change.
type SecurityEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"`
	UserID      string    `json:"user_id,omitempty"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// Sink receives emitted events. Implementations must be safe for concurrent
// use and must not block for long; slow sinks belong behind a Dispatcher.
type Sink interface {
	EmitAuth(ctx context.Context, event AuthEvent)
	EmitSecurity(ctx context.Context, event SecurityEvent)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) EmitAuth(context.Context, AuthEvent)         {}
func (NoOpSink) EmitSecurity(context.Context, SecurityEvent) {}

// Record is either an auth or a security event. Exactly one field is set.
type Record struct {
	Auth     *AuthEvent     `json:"auth,omitempty"`
	Security *SecurityEvent `json:"security,omitempty"`
}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Record
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Record, buffer),
	}
}

func (s *ChannelSink) EmitAuth(ctx context.Context, event AuthEvent) {
	s.put(ctx, Record{Auth: &event})
}

func (s *ChannelSink) EmitSecurity(ctx context.Context, event SecurityEvent) {
	s.put(ctx, Record{Security: &event})
}

func (s *ChannelSink) put(ctx context.Context, r Record) {
	select {
	case s.events <- r:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Record {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) EmitAuth(_ context.Context, event AuthEvent) {
	s.write(Record{Auth: &event})
}

func (s *JSONWriterSink) EmitSecurity(_ context.Context, event SecurityEvent) {
	s.write(Record{Security: &event})
}

func (s *JSONWriterSink) write(r Record) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// MultiSink fans every event out to each sink in order.
type MultiSink []Sink

func (m MultiSink) EmitAuth(ctx context.Context, event AuthEvent) {
	for _, s := range m {
		if s != nil {
			s.EmitAuth(ctx, event)
		}
	}
}

func (m MultiSink) EmitSecurity(ctx context.Context, event SecurityEvent) {
	for _, s := range m {
		if s != nil {
			s.EmitSecurity(ctx, event)
		}
	}
}
