package keypool

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/pollenlabs/pollen-relay/internal/ratelimit"
)

// ManagerConfig tunes the pool manager.
type ManagerConfig struct {
	// Exclusive binds each key to at most one live lease. In shared mode
	// multiple leases may reference the same key and throttling relies
	// solely on rate limit accounting.
	Exclusive bool

	// LeaseTimeout is the maximum age of an unreported lease before the
	// sweep auto-releases it as a transient error.
	LeaseTimeout time.Duration

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration
}

// Lease is a short-lived claim on a key, closed by exactly one Report.
// The secret rides along unexported so the forwarder can authenticate
// without the pool ever exposing it through logs or serialization.
type Lease struct {
	ID    string
	KeyID string

	secret string
}

// Secret returns the upstream credential bound to this lease.
func (l Lease) Secret() string {
	return l.secret
}

type leaseState struct {
	keyID      string
	acquiredAt time.Time
}

// PoolStats summarizes pool state for the admin surface and metrics.
type PoolStats struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	CoolingDown int `json:"cooling_down"`
	Disabled    int `json:"disabled"`
	LiveLeases  int `json:"live_leases"`
}

// Manager orchestrates the key record store, rate limit tracker, and
// selection policy behind acquire/report operations.
//
// One mutex serializes every state mutation. Acquire and Report hold it only
// across the in-memory read-modify-write; the upstream call a lease exists
// for always happens outside the lock. Because Report applies its state
// transition before returning, a Report that has returned is always visible
// to later Acquires.
type Manager struct {
	mu      sync.Mutex
	store   *Store
	tracker *ratelimit.Tracker
	policy  Policy
	leases  map[string]*leaseState
	inUse   map[string]string // keyID -> leaseID, exclusive mode only
	cfg     ManagerConfig
	now     func() time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewManager creates a Manager over the given store, tracker, and policy.
func NewManager(store *Store, tracker *ratelimit.Tracker, policy Policy, cfg ManagerConfig) *Manager {
	m := &Manager{
		store:   store,
		tracker: tracker,
		policy:  policy,
		leases:  make(map[string]*leaseState),
		inUse:   make(map[string]string),
		cfg:     cfg,
		now:     time.Now,

		sweepStop: make(chan struct{}),
	}

	log.Info().
		Int("num_keys", store.Len()).
		Str("strategy", policy.Name()).
		Bool("exclusive", cfg.Exclusive).
		Dur("lease_timeout", cfg.LeaseTimeout).
		Msg("created key pool manager")

	return m
}

// Acquire selects a key and returns a lease on it.
// Returns ErrNoKeyAvailable when no key qualifies.
func (m *Manager) Acquire() (Lease, error) {
	return m.AcquireExcluding()
}

// AcquireExcluding acquires a lease while skipping the given key IDs.
// The relay uses this to retry with a different key after a failure.
func (m *Manager) AcquireExcluding(exclude ...string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.releaseExpiredLocked(now)

	snap := m.snapshotLocked(now, exclude)
	keyID, err := m.policy.Select(snap)
	if err != nil {
		return Lease{}, err
	}

	// The snapshot guaranteed remaining budget under this same lock, so the
	// consume cannot fail; treat a refusal as pool exhaustion regardless.
	if !m.tracker.Consume(keyID, now) {
		return Lease{}, ErrNoKeyAvailable
	}

	if err := m.store.Touch(keyID, now); err != nil {
		return Lease{}, fmt.Errorf("keypool: acquire: %w", err)
	}

	rec, err := m.store.Get(keyID)
	if err != nil {
		return Lease{}, fmt.Errorf("keypool: acquire: %w", err)
	}

	lease := Lease{
		ID:     uuid.NewString(),
		KeyID:  keyID,
		secret: rec.Secret(),
	}
	m.leases[lease.ID] = &leaseState{keyID: keyID, acquiredAt: now}
	if m.cfg.Exclusive {
		m.inUse[keyID] = lease.ID
	}

	log.Debug().
		Str("key_id", keyID).
		Str("lease_id", lease.ID).
		Str("strategy", m.policy.Name()).
		Msg("acquired key lease")

	return lease, nil
}

// Report closes a lease with the outcome of its upstream call. This is the
// only path that mutates key record and rate limit state after startup.
//
// Report is idempotent per lease: a second report for the same lease is a
// no-op, as is a report for a lease already auto-released by the sweep.
func (m *Manager) Report(lease Lease, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reportLocked(lease.ID, outcome)
}

func (m *Manager) reportLocked(leaseID string, outcome Outcome) {
	ls, ok := m.leases[leaseID]
	if !ok {
		return
	}
	delete(m.leases, leaseID)
	if m.cfg.Exclusive && m.inUse[ls.keyID] == leaseID {
		delete(m.inUse, ls.keyID)
	}

	if err := m.store.RecordOutcome(ls.keyID, outcome, m.now()); err != nil {
		log.Warn().
			Str("key_id", ls.keyID).
			Str("lease_id", leaseID).
			Err(err).
			Msg("failed to record lease outcome")
		return
	}

	log.Debug().
		Str("key_id", ls.keyID).
		Str("lease_id", leaseID).
		Str("class", string(outcome.Class)).
		Msg("reported lease outcome")
}

// snapshotLocked builds the selection snapshot. Expired cooldowns are cleared
// first so the "cooldown ends exactly when observed past" invariant holds at
// every selection point.
func (m *Manager) snapshotLocked(now time.Time, exclude []string) Snapshot {
	m.store.clearExpiredCooldowns(now)

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	keys := make([]KeyState, 0, m.store.Len())
	m.store.each(func(rec *Record) {
		if excluded[rec.ID] {
			return
		}
		_, inUse := m.inUse[rec.ID]
		keys = append(keys, KeyState{
			ID:                  rec.ID,
			Status:              rec.Status,
			ConsecutiveFailures: rec.ConsecutiveFailures,
			LastUsedAt:          rec.LastUsedAt,
			Remaining:           m.tracker.Remaining(rec.ID, now),
			InUse:               inUse,
		})
	})

	return Snapshot{TakenAt: now, Keys: keys}
}

// Snapshot returns a consistent view of the whole pool.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked(m.now(), nil)
}

// Stats aggregates pool state counts. Counts and the live lease count come
// from the same critical section so they describe one instant.
func (m *Manager) Stats() PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshotLocked(m.now(), nil)
	counts := lo.CountValuesBy(snap.Keys, func(k KeyState) Status { return k.Status })

	return PoolStats{
		Total:       len(snap.Keys),
		Available:   counts[StatusAvailable],
		CoolingDown: counts[StatusCoolingDown],
		Disabled:    counts[StatusDisabled],
		LiveLeases:  len(m.leases),
	}
}

// RetryAfterHint estimates when a caller should retry after the pool reported
// no key available: the earliest cooldown expiry, or the next rate limit
// reset when no cooldowns are set.
func (m *Manager) RetryAfterHint() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	var earliest time.Time
	m.store.each(func(rec *Record) {
		if rec.Status != StatusCoolingDown || rec.CooldownUntil.IsZero() {
			return
		}
		if earliest.IsZero() || rec.CooldownUntil.Before(earliest) {
			earliest = rec.CooldownUntil
		}
	})

	if earliest.IsZero() {
		return m.tracker.NextReset(now)
	}
	hint := earliest.Sub(now)
	if hint < 0 {
		return 0
	}
	return hint
}

// Enable re-enables a key, the operator path out of the disabled state.
func (m *Manager) Enable(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.MarkAvailable(keyID); err != nil {
		return err
	}
	log.Info().Str("key_id", keyID).Msg("key enabled by operator")
	return nil
}

// Disable takes a key out of service until an operator re-enables it.
func (m *Manager) Disable(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.MarkDisabled(keyID); err != nil {
		return err
	}
	log.Info().Str("key_id", keyID).Msg("key disabled by operator")
	return nil
}

// releaseExpiredLocked auto-reports leases older than the lease timeout as
// transient errors, so a crashed forwarder call cannot strand a key in use.
func (m *Manager) releaseExpiredLocked(now time.Time) {
	if m.cfg.LeaseTimeout <= 0 {
		return
	}
	for id, ls := range m.leases {
		if now.Sub(ls.acquiredAt) < m.cfg.LeaseTimeout {
			continue
		}
		log.Warn().
			Str("key_id", ls.keyID).
			Str("lease_id", id).
			Time("acquired_at", ls.acquiredAt).
			Msg("lease timed out, auto-releasing as transient error")
		m.reportLocked(id, Outcome{Class: ClassTransientError, RetryAfter: mo.None[time.Duration]()})
	}
}

// StartSweep launches the background sweep that releases expired leases and
// clears expired cooldowns. Stop terminates it.
func (m *Manager) StartSweep() {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.sweepStop:
				return
			case <-ticker.C:
				m.mu.Lock()
				now := m.now()
				m.releaseExpiredLocked(now)
				m.store.clearExpiredCooldowns(now)
				m.mu.Unlock()
			}
		}
	}()
}

// Stop terminates the background sweep. Safe to call more than once.
func (m *Manager) Stop() {
	m.sweepOnce.Do(func() {
		close(m.sweepStop)
	})
}
