package lockout

import (
	"errors"
	"time"
)

const (
	DefaultThreshold = 5
	DefaultDuration  = 15 * time.Minute
)

// Status is the result of Evaluate.
type Status int

const (
	Unlocked Status = iota
	Locked
)

func (s Status) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// State is the persisted part of the lockout machine. It lives on the
// credential record and is mutated only inside a store transaction.
type State struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// Policy holds the lockout thresholds.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultPolicy locks for 15 minutes after 5 consecutive failures.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Duration: DefaultDuration}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.Threshold <= 0 {
		return errors.New("lockout threshold must be > 0")
	}
	if p.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}
	return nil
}

// Evaluate reports whether s is locked at now. An elapsed lock is cleared
// in place, resetting the counter, before Unlocked is reported.
func (p Policy) Evaluate(s *State, now time.Time) Status {
	if s.LockedUntil == nil {
		return Unlocked
	}
	if now.Before(*s.LockedUntil) {
		return Locked
	}
	s.LockedUntil = nil
	s.FailedAttempts = 0
	return Unlocked
}

// RegisterFailure records a failed attempt. It returns true when this
// failure is the one that locked the account.
func (p Policy) RegisterFailure(s *State, now time.Time) bool {
	s.FailedAttempts++
	if s.FailedAttempts < p.Threshold {
		return false
	}
	if s.LockedUntil != nil && now.Before(*s.LockedUntil) {
		return false
	}
	until := now.Add(p.Duration)
	s.LockedUntil = &until
	return true
}

// Reset returns s to the initial unlocked state.
func (p Policy) Reset(s *State) {
	s.FailedAttempts = 0
	s.LockedUntil = nil
}

// Remaining returns how long s stays locked at now, or zero.
func (p Policy) Remaining(s State, now time.Time) time.Duration {
	if s.LockedUntil == nil || !now.Before(*s.LockedUntil) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}
