// Package kafka publishes mtAuth audit events to a Kafka topic as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	mtAuth "github.com/MrEthical07/mtAuth"
)

// Header values carried in the "event-type" header.
const (
	HeaderEventType = "event-type"
	TypeAuth        = "auth"
	TypeSecurity    = "security"
)

const publishTimeout = 5 * time.Second

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config describes the producer built by NewWriter.
type Config struct {
	Brokers []string
	Topic   string
}

// NewWriter returns a batching writer for cfg. Messages are keyed by user
// ID so one account's events stay ordered within a partition.
func NewWriter(cfg Config, logger *zap.Logger) *kafka.Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...))
		}),
	}
}

// Sink is an mtAuth.AuditSink that publishes every event as one message.
// Publish failures are logged and dropped.
type Sink struct {
	w      MessageWriter
	logger *zap.Logger
}

var _ mtAuth.AuditSink = (*Sink)(nil)

// New wraps w.
func New(w MessageWriter, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{w: w, logger: logger}
}

// EmitAuth publishes ev with the auth event type header.
func (s *Sink) EmitAuth(ctx context.Context, ev mtAuth.AuthEvent) {
	s.publish(ctx, TypeAuth, ev.Kind, ev.UserID, ev.Timestamp, ev)
}

// EmitSecurity publishes ev with the security event type header.
func (s *Sink) EmitSecurity(ctx context.Context, ev mtAuth.SecurityEvent) {
	s.publish(ctx, TypeSecurity, ev.Kind, ev.UserID, ev.Timestamp, ev)
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	return s.w.Close()
}

func (s *Sink) publish(ctx context.Context, eventType, kind, userID string, at time.Time, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("kafka sink: marshal event", zap.String("kind", kind), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(userID),
		Value: data,
		Time:  at,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.logger.Error("kafka sink: publish event",
			zap.String("type", eventType),
			zap.String("kind", kind),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
