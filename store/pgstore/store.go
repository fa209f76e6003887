// Package pgstore persists credentials and audit records in PostgreSQL
// through a pgx connection pool.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mtAuth "github.com/MrEthical07/mtAuth"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const credentialColumns = `
	id,
	username,
	email,
	password_hash,
	totp_secret,
	two_factor_enabled,
	backup_codes,
	failed_login_attempts,
	locked_until,
	last_login_at,
	password_changed_at,
	COALESCE(reset_token_hash, ''),
	reset_token_expires_at,
	role,
	created_at`

// Store is a CredentialStore backed by the credentials table.
type Store struct {
	db *pgxpool.Pool
}

var _ mtAuth.CredentialStore = (*Store)(nil)

// New wraps an open pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the tables and indexes when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// Connect parses dsn, opens a pool and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

func scanCredential(row pgx.Row, extra ...any) (*mtAuth.Credential, error) {
	var c mtAuth.Credential
	dest := []any{
		&c.ID,
		&c.Username,
		&c.Email,
		&c.PasswordHash,
		&c.TOTPSecret,
		&c.TwoFactorEnabled,
		&c.BackupCodes,
		&c.FailedLoginAttempts,
		&c.LockedUntil,
		&c.LastLoginAt,
		&c.PasswordChangedAt,
		&c.ResetTokenHash,
		&c.ResetTokenExpiresAt,
		&c.Role,
		&c.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mtAuth.ErrNotFound
		}
		return nil, fmt.Errorf("pgstore: scan credential: %w", err)
	}
	return &c, nil
}

func (s *Store) getOne(ctx context.Context, where string, arg any) (*mtAuth.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE ` + where + ` LIMIT 1`
	return scanCredential(s.db.QueryRow(ctx, q, arg))
}

// GetByEmail looks a credential up by lower-cased email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*mtAuth.Credential, error) {
	return s.getOne(ctx, `email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

// GetByID looks a credential up by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*mtAuth.Credential, error) {
	return s.getOne(ctx, `id = $1`, id)
}

// GetByResetToken looks a credential up by the sha256 hex digest of its
// outstanding reset token.
func (s *Store) GetByResetToken(ctx context.Context, tokenHash string) (*mtAuth.Credential, error) {
	if tokenHash == "" {
		return nil, mtAuth.ErrNotFound
	}
	return s.getOne(ctx, `reset_token_hash = $1`, tokenHash)
}

// Create inserts c and maps unique violations to the duplicate sentinels.
func (s *Store) Create(ctx context.Context, c *mtAuth.Credential) error {
	if err := c.CheckInvariants(); err != nil {
		return fmt.Errorf("pgstore: %w", err)
	}
	const q = `
		INSERT INTO credentials (
			id, username, email, password_hash, totp_secret, two_factor_enabled,
			backup_codes, failed_login_attempts, locked_until, last_login_at,
			password_changed_at, reset_token_hash, reset_token_expires_at, role, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $15)
	`
	_, err := s.db.Exec(ctx, q,
		c.ID,
		c.Username,
		strings.ToLower(c.Email),
		c.PasswordHash,
		c.TOTPSecret,
		c.TwoFactorEnabled,
		backupCodes(c.BackupCodes),
		c.FailedLoginAttempts,
		c.LockedUntil,
		c.LastLoginAt,
		c.PasswordChangedAt,
		c.ResetTokenHash,
		c.ResetTokenExpiresAt,
		c.Role,
		c.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE, hands fn the record and
// the transaction timestamp, and writes the result back in the same
// transaction.
func (s *Store) Update(ctx context.Context, id string, fn func(c *mtAuth.Credential, now time.Time) error) (*mtAuth.Credential, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var now time.Time
	q := `SELECT ` + credentialColumns + `, now() FROM credentials WHERE id = $1 FOR UPDATE`
	c, err := scanCredential(tx.QueryRow(ctx, q, id), &now)
	if err != nil {
		return nil, err
	}

	if err := fn(c, now); err != nil {
		return nil, err
	}
	if err := c.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("pgstore: %w", err)
	}

	const upd = `
		UPDATE credentials SET
			username = $2,
			email = $3,
			password_hash = $4,
			totp_secret = $5,
			two_factor_enabled = $6,
			backup_codes = $7,
			failed_login_attempts = $8,
			locked_until = $9,
			last_login_at = $10,
			password_changed_at = $11,
			reset_token_hash = NULLIF($12, ''),
			reset_token_expires_at = $13,
			role = $14
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, upd,
		id,
		c.Username,
		strings.ToLower(c.Email),
		c.PasswordHash,
		c.TOTPSecret,
		c.TwoFactorEnabled,
		backupCodes(c.BackupCodes),
		c.FailedLoginAttempts,
		c.LockedUntil,
		c.LastLoginAt,
		c.PasswordChangedAt,
		c.ResetTokenHash,
		c.ResetTokenExpiresAt,
		c.Role,
	); err != nil {
		return nil, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("pgstore: commit: %w", err)
	}
	c.ID = id
	return c, nil
}

func backupCodes(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "credentials_username_key":
			return mtAuth.ErrUserAlreadyExists
		case "credentials_email_key":
			return mtAuth.ErrEmailAlreadyExists
		}
	}
	return fmt.Errorf("pgstore: write credential: %w", err)
}
