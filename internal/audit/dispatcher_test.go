package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	auth     atomic.Int64
	security atomic.Int64
}

func (s *countingSink) EmitAuth(context.Context, AuthEvent)         { s.auth.Add(1) }
func (s *countingSink) EmitSecurity(context.Context, SecurityEvent) { s.security.Add(1) }

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) EmitAuth(context.Context, AuthEvent)         { <-s.gate }
func (s *gateSink) EmitSecurity(context.Context, SecurityEvent) { <-s.gate }

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.EmitAuth(context.Background(), AuthEvent{Kind: "login"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 20; i++ {
		d.EmitAuth(context.Background(), AuthEvent{Kind: "login"})
		d.EmitSecurity(context.Background(), SecurityEvent{Kind: "account_locked", Severity: SeverityHigh})
	}
	d.Close()

	if sink.auth.Load() != 20 || sink.security.Load() != 20 {
		t.Fatalf("expected 20/20 delivered, got %d/%d", sink.auth.Load(), sink.security.Load())
	}

	d.EmitAuth(context.Background(), AuthEvent{Kind: "login"})
	if sink.auth.Load() != 20 {
		t.Fatal("expected emit after close to be ignored")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// first event is picked up by the worker and blocks on the gate,
	// the second fills the buffer, the rest are dropped
	d.EmitAuth(context.Background(), AuthEvent{Kind: "login"})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		d.EmitAuth(context.Background(), AuthEvent{Kind: "login"})
	}

	if d.Dropped() != 4 {
		t.Fatalf("expected 4 dropped events, got %d", d.Dropped())
	}
	close(sink.gate)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.EmitAuth(context.Background(), AuthEvent{Kind: "login", FailureReason: "user_not_found"})
	s.EmitSecurity(context.Background(), SecurityEvent{Kind: "account_locked", Severity: SeverityHigh})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Record
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Auth == nil || first.Auth.FailureReason != "user_not_found" || first.Security != nil {
		t.Fatalf("unexpected record %+v", first)
	}
	var second Record
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.Security == nil || second.Security.Severity != SeverityHigh {
		t.Fatalf("unexpected record %+v", second)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := MultiSink{a, nil, b}
	m.EmitAuth(context.Background(), AuthEvent{})
	m.EmitSecurity(context.Background(), SecurityEvent{})
	if a.auth.Load() != 1 || b.auth.Load() != 1 || a.security.Load() != 1 || b.security.Load() != 1 {
		t.Fatal("expected every sink to receive both events")
	}
}

func TestChannelSink(t *testing.T) {
	s := NewChannelSink(2)
	s.EmitSecurity(context.Background(), SecurityEvent{Kind: "2fa_enabled"})
	r := <-s.Events()
	if r.Security == nil || r.Security.Kind != "2fa_enabled" {
		t.Fatalf("unexpected record %+v", r)
	}
}
