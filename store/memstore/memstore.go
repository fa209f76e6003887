// Package memstore is an in-process mtAuth.CredentialStore.
//
// Records are held as deep copies, so callers never share memory with the
// store. Update serializes on a per-credential mutex and runs fn outside the
// index lock, which lets unrelated accounts progress concurrently.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mtAuth "github.com/MrEthical07/mtAuth"
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time passed to Update callbacks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store keeps credentials in memory.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*mtAuth.Credential
	byEmail map[string]string
	byName  map[string]string
	byReset map[string]string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

var _ mtAuth.CredentialStore = (*Store)(nil)

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		byID:    make(map[string]*mtAuth.Credential),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
		byReset: make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByEmail returns a copy of the credential registered under email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*mtAuth.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, mtAuth.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// GetByID returns a copy of the credential with id.
func (s *Store) GetByID(ctx context.Context, id string) (*mtAuth.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, mtAuth.ErrNotFound
	}
	return c.Clone(), nil
}

// GetByResetToken returns the credential holding tokenHash as its
// outstanding reset token. Expiry is not checked here.
func (s *Store) GetByResetToken(ctx context.Context, tokenHash string) (*mtAuth.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tokenHash == "" {
		return nil, mtAuth.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReset[tokenHash]
	if !ok {
		return nil, mtAuth.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// Create inserts c. Username is checked before email.
func (s *Store) Create(ctx context.Context, c *mtAuth.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.ID == "" {
		return fmt.Errorf("memstore: credential id required")
	}
	if err := c.CheckInvariants(); err != nil {
		return fmt.Errorf("memstore: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return fmt.Errorf("memstore: duplicate id %q", c.ID)
	}
	if _, ok := s.byName[c.Username]; ok {
		return mtAuth.ErrUserAlreadyExists
	}
	if _, ok := s.byEmail[emailKey(c.Email)]; ok {
		return mtAuth.ErrEmailAlreadyExists
	}

	stored := c.Clone()
	s.byID[stored.ID] = stored
	s.byName[stored.Username] = stored.ID
	s.byEmail[emailKey(stored.Email)] = stored.ID
	if stored.ResetTokenHash != "" {
		s.byReset[stored.ResetTokenHash] = stored.ID
	}
	return nil
}

// Update runs fn on a copy of the credential with id while holding that
// credential's lock, then stores the copy. Nothing is written when fn fails
// or when the result breaks a record invariant.
func (s *Store) Update(ctx context.Context, id string, fn func(c *mtAuth.Credential, now time.Time) error) (*mtAuth.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.byID[id]
	var working *mtAuth.Credential
	if ok {
		working = current.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, mtAuth.ErrNotFound
	}

	if err := fn(working, s.now()); err != nil {
		return nil, err
	}
	if err := working.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("memstore: %w", err)
	}
	working.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.byID[id]
	if old.Username != working.Username {
		if owner, taken := s.byName[working.Username]; taken && owner != id {
			return nil, mtAuth.ErrUserAlreadyExists
		}
	}
	if emailKey(old.Email) != emailKey(working.Email) {
		if owner, taken := s.byEmail[emailKey(working.Email)]; taken && owner != id {
			return nil, mtAuth.ErrEmailAlreadyExists
		}
	}

	delete(s.byName, old.Username)
	delete(s.byEmail, emailKey(old.Email))
	if old.ResetTokenHash != "" {
		delete(s.byReset, old.ResetTokenHash)
	}

	s.byID[id] = working
	s.byName[working.Username] = id
	s.byEmail[emailKey(working.Email)] = id
	if working.ResetTokenHash != "" {
		s.byReset[working.ResetTokenHash] = id
	}
	return working.Clone(), nil
}

// Len returns the number of stored credentials.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}
