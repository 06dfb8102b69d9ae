// Package keypool implements the upstream key pool: key records, selection
// policy, and the lease-based pool manager.
//
// All mutable pool state (key records and rate limit accounting) is owned by
// the Manager and mutated only under its lock, which is held across the
// in-memory read-modify-write of acquire/report and never across network I/O.
package keypool

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/mo"
)

// Status is the lifecycle state of a key record.
type Status string

// Key record states.
const (
	// StatusAvailable means the key may be selected, budget permitting.
	StatusAvailable Status = "available"

	// StatusCoolingDown means the key is excluded until CooldownUntil passes.
	StatusCoolingDown Status = "cooling_down"

	// StatusDisabled is terminal until an operator re-enables the key.
	StatusDisabled Status = "disabled"
)

// Class categorizes the outcome of an upstream call made with a key.
type Class string

// Outcome classes.
const (
	ClassSuccess        Class = "success"
	ClassRateLimited    Class = "rate_limited"
	ClassAuthError      Class = "auth_error"
	ClassTransientError Class = "transient_error"
)

// Outcome reports how an upstream call with a leased key went.
// RetryAfter carries the upstream's throttle hint for rate_limited outcomes.
type Outcome struct {
	Class      Class
	RetryAfter mo.Option[time.Duration]
}

// Record tracks the mutable state of a single upstream key.
// Records are created once at startup, never deleted, only disabled.
// The secret is unexported so it can never leak through logging or JSON.
type Record struct {
	// ID is the first 8 hex chars of the SHA-256 hash of the secret.
	// Stable, reproducible, and safe to log; not used for security.
	ID string

	secret string

	Status              Status
	ConsecutiveFailures int
	AuthFailures        int
	LastUsedAt          time.Time

	// CooldownUntil excludes the key from selection while in the future.
	// Zero means no cooldown is set.
	CooldownUntil time.Time
}

// KeyID derives the stable identifier for a key secret.
func KeyID(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])[:8]
}

func newRecord(secret string) *Record {
	return &Record{
		ID:     KeyID(secret),
		secret: secret,
		Status: StatusAvailable,
	}
}

// Secret returns the actual upstream credential.
func (r *Record) Secret() string {
	return r.secret
}

// StoreConfig tunes the outcome-driven state transitions.
type StoreConfig struct {
	// CooldownBase and CooldownCap bound the exponential cooldown applied
	// after repeated transient failures: base * 2^failures, capped.
	CooldownBase time.Duration
	CooldownCap  time.Duration

	// DefaultCooldown applies to rate_limited outcomes with no retry-after.
	DefaultCooldown time.Duration

	// TransientThreshold is the consecutive transient failure count at
	// which cooldowns start.
	TransientThreshold int

	// AuthFailureThreshold is the consecutive auth failure count that
	// disables the key.
	AuthFailureThreshold int
}

// Store holds the set of known upstream keys and their mutable state.
//
// Store is not internally synchronized: the Manager serializes all access
// under its lock, making it the single writer the state machine requires.
type Store struct {
	records map[string]*Record
	order   []string // IDs in config order, for deterministic iteration
	cfg     StoreConfig
}

// NewStore builds records for the configured secrets.
// Returns ErrNoKeys for an empty list and ErrDuplicateKey on duplicates.
func NewStore(secrets []string, cfg StoreConfig) (*Store, error) {
	if len(secrets) == 0 {
		return nil, ErrNoKeys
	}

	s := &Store{
		records: make(map[string]*Record, len(secrets)),
		order:   make([]string, 0, len(secrets)),
		cfg:     cfg,
	}
	for _, secret := range secrets {
		rec := newRecord(secret)
		if _, exists := s.records[rec.ID]; exists {
			return nil, ErrDuplicateKey
		}
		s.records[rec.ID] = rec
		s.order = append(s.order, rec.ID)
	}
	return s, nil
}

// Get returns a copy of the record for external inspection.
func (s *Store) Get(id string) (Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrKeyNotFound
	}
	return *rec, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// each visits every record in config order.
func (s *Store) each(fn func(*Record)) {
	for _, id := range s.order {
		fn(s.records[id])
	}
}

// Touch records that the key was just handed out for use.
func (s *Store) Touch(id string, now time.Time) error {
	rec, ok := s.records[id]
	if !ok {
		return ErrKeyNotFound
	}
	rec.LastUsedAt = now
	return nil
}

// MarkCooldown places the key in cooldown until the given time.
func (s *Store) MarkCooldown(id string, until time.Time) error {
	rec, ok := s.records[id]
	if !ok {
		return ErrKeyNotFound
	}
	if rec.Status == StatusDisabled {
		return nil
	}
	rec.Status = StatusCoolingDown
	rec.CooldownUntil = until
	return nil
}

// MarkDisabled disables the key. Terminal until MarkAvailable.
func (s *Store) MarkDisabled(id string) error {
	rec, ok := s.records[id]
	if !ok {
		return ErrKeyNotFound
	}
	rec.Status = StatusDisabled
	rec.CooldownUntil = time.Time{}
	return nil
}

// MarkAvailable returns the key to service, clearing cooldown and failure
// counters. This is also the operator path for re-enabling a disabled key.
func (s *Store) MarkAvailable(id string) error {
	rec, ok := s.records[id]
	if !ok {
		return ErrKeyNotFound
	}
	rec.Status = StatusAvailable
	rec.CooldownUntil = time.Time{}
	rec.ConsecutiveFailures = 0
	rec.AuthFailures = 0
	return nil
}

// RecordOutcome applies an outcome report to the key's state machine.
func (s *Store) RecordOutcome(id string, outcome Outcome, now time.Time) error {
	rec, ok := s.records[id]
	if !ok {
		return ErrKeyNotFound
	}

	switch outcome.Class {
	case ClassSuccess:
		rec.ConsecutiveFailures = 0
		rec.AuthFailures = 0
		rec.CooldownUntil = time.Time{}
		if rec.Status == StatusCoolingDown {
			rec.Status = StatusAvailable
		}

	case ClassAuthError:
		// Auth errors indicate a bad credential, not throttling; repeated
		// ones permanently disable the key.
		rec.AuthFailures++
		if rec.AuthFailures >= s.cfg.AuthFailureThreshold {
			rec.Status = StatusDisabled
			rec.CooldownUntil = time.Time{}
		}

	case ClassTransientError:
		rec.ConsecutiveFailures++
		if rec.ConsecutiveFailures >= s.cfg.TransientThreshold {
			until := now.Add(s.transientCooldown(rec.ConsecutiveFailures))
			if rec.Status != StatusDisabled {
				rec.Status = StatusCoolingDown
				rec.CooldownUntil = until
			}
		}

	case ClassRateLimited:
		cooldown := outcome.RetryAfter.OrElse(s.cfg.DefaultCooldown)
		if rec.Status != StatusDisabled {
			rec.Status = StatusCoolingDown
			rec.CooldownUntil = now.Add(cooldown)
		}
	}

	return nil
}

// transientCooldown computes base * 2^failures, capped.
func (s *Store) transientCooldown(failures int) time.Duration {
	cooldown := s.cfg.CooldownBase
	for i := 0; i < failures; i++ {
		cooldown *= 2
		if cooldown >= s.cfg.CooldownCap {
			return s.cfg.CooldownCap
		}
	}
	return cooldown
}

// clearExpiredCooldowns returns cooled-down keys whose cooldown has passed to
// the available state. Disabled keys are untouched.
func (s *Store) clearExpiredCooldowns(now time.Time) {
	s.each(func(rec *Record) {
		if rec.Status != StatusCoolingDown {
			return
		}
		if !rec.CooldownUntil.After(now) {
			rec.Status = StatusAvailable
			rec.CooldownUntil = time.Time{}
		}
	})
}
