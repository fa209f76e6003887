// Package mail provides mtAuth.Mailer implementations for development and
// tests. Production delivery is supplied by the host application.
package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"

	mtAuth "github.com/MrEthical07/mtAuth"
)

// LogMailer writes every message to a zap logger instead of sending it.
// It prints reset links and codes, so it must not be used in production.
type LogMailer struct {
	logger *zap.Logger
}

var _ mtAuth.Mailer = (*LogMailer)(nil)

// NewLogMailer returns a LogMailer writing to logger.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mail")}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.logger.Info("password reset", zap.String("to", email), zap.String("link", link))
	return nil
}

func (m *LogMailer) SendBackupCodes(_ context.Context, email string, codes []string) error {
	m.logger.Info("backup codes", zap.String("to", email), zap.Strings("codes", codes))
	return nil
}

func (m *LogMailer) SendTOTPCode(_ context.Context, email, code string) error {
	m.logger.Info("totp code", zap.String("to", email), zap.String("code", code))
	return nil
}

// Kind identifies the message type captured by Recorder.
type Kind string

const (
	KindPasswordReset Kind = "password_reset"
	KindBackupCodes   Kind = "backup_codes"
	KindTOTPCode      Kind = "totp_code"
)

// Message is one captured email.
type Message struct {
	Kind  Kind
	To    string
	Link  string
	Code  string
	Codes []string
}

// Recorder keeps every message in memory. Err, when set, is returned from
// every send after the message is recorded.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

var _ mtAuth.Mailer = (*Recorder)(nil)

func (r *Recorder) record(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.Err
}

func (r *Recorder) SendPasswordReset(_ context.Context, email, link string) error {
	return r.record(Message{Kind: KindPasswordReset, To: email, Link: link})
}

func (r *Recorder) SendBackupCodes(_ context.Context, email string, codes []string) error {
	return r.record(Message{Kind: KindBackupCodes, To: email, Codes: append([]string(nil), codes...)})
}

func (r *Recorder) SendTOTPCode(_ context.Context, email, code string) error {
	return r.record(Message{Kind: KindTOTPCode, To: email, Code: code})
}

// Messages returns a copy of the captured messages in send order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Last returns the most recent message of kind.
func (r *Recorder) Last(kind Kind) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Kind == kind {
			return r.msgs[i], true
		}
	}
	return Message{}, false
}

// Count returns how many messages of kind were captured.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}
