package keypool

import "time"

// SetNow overrides the manager's clock (for testing).
func (m *Manager) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// LiveLeases returns the number of open leases (for testing).
func (m *Manager) LiveLeases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leases)
}

// Record returns a copy of a key record (for testing).
func (m *Manager) Record(keyID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(keyID)
}

// SweepNow runs one sweep pass synchronously (for testing).
func (m *Manager) SweepNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.releaseExpiredLocked(now)
	m.store.clearExpiredCooldowns(now)
}

// TransientCooldown exposes the cooldown curve (for testing).
func (s *Store) TransientCooldown(failures int) time.Duration {
	return s.transientCooldown(failures)
}

// ClearExpiredCooldowns exposes cooldown clearing (for testing).
func (s *Store) ClearExpiredCooldowns(now time.Time) {
	s.clearExpiredCooldowns(now)
}
