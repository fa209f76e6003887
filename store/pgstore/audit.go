package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mtAuth "github.com/MrEthical07/mtAuth"
)

// AuditSink appends auth and security events to the auth_logs and
// security_events tables. Rows are never updated or deleted.
//
// Inserts run synchronously; wrap the sink in the engine's async dispatcher
// (Config.Audit.Enabled) to keep them off the request path.
type AuditSink struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ mtAuth.AuditSink = (*AuditSink)(nil)

// NewAuditSink returns a sink writing through db. Insert failures are logged
// to logger and otherwise dropped.
func NewAuditSink(db *pgxpool.Pool, logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditSink{db: db, logger: logger}
}

// EmitAuth inserts one auth_logs row.
func (s *AuditSink) EmitAuth(ctx context.Context, ev mtAuth.AuthEvent) {
	const q = `
		INSERT INTO auth_logs (
			occurred_at, kind, user_id, username, email, success, failure_reason,
			ip_address, user_agent, session_id, two_factor_used, backup_code_used
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''),
			NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12)
	`
	_, err := s.db.Exec(ctx, q,
		ev.Timestamp,
		ev.Kind,
		ev.UserID,
		ev.Username,
		ev.Email,
		ev.Success,
		ev.FailureReason,
		ev.IP,
		ev.UserAgent,
		ev.SessionID,
		ev.TwoFactorUsed,
		ev.BackupCodeUsed,
	)
	if err != nil {
		s.logger.Error("pgstore: insert auth log",
			zap.String("kind", ev.Kind),
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}

// EmitSecurity inserts one security_events row.
func (s *AuditSink) EmitSecurity(ctx context.Context, ev mtAuth.SecurityEvent) {
	const q = `
		INSERT INTO security_events (
			occurred_at, kind, user_id, description, severity, ip_address, user_agent
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''))
	`
	_, err := s.db.Exec(ctx, q,
		ev.Timestamp,
		ev.Kind,
		ev.UserID,
		ev.Description,
		string(ev.Severity),
		ev.IP,
		ev.UserAgent,
	)
	if err != nil {
		s.logger.Error("pgstore: insert security event",
			zap.String("kind", ev.Kind),
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}
