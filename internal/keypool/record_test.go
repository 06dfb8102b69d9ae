package keypool

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreConfig() StoreConfig {
	return StoreConfig{
		CooldownBase:         time.Second,
		CooldownCap:          5 * time.Minute,
		DefaultCooldown:      time.Minute,
		TransientThreshold:   3,
		AuthFailureThreshold: 3,
	}
}

func newTestStore(t *testing.T, secrets ...string) *Store {
	t.Helper()
	store, err := NewStore(secrets, testStoreConfig())
	require.NoError(t, err)
	return store
}

func noRetryAfter() Outcome {
	return Outcome{Class: ClassTransientError, RetryAfter: mo.None[time.Duration]()}
}

func TestKeyID(t *testing.T) {
	t.Run("is stable for the same secret", func(t *testing.T) {
		assert.Equal(t, KeyID("sk-alpha"), KeyID("sk-alpha"))
	})

	t.Run("differs across secrets", func(t *testing.T) {
		assert.NotEqual(t, KeyID("sk-alpha"), KeyID("sk-beta"))
	})

	t.Run("is 8 hex chars", func(t *testing.T) {
		id := KeyID("sk-alpha")
		assert.Len(t, id, 8)
		assert.Regexp(t, "^[0-9a-f]{8}$", id)
	})
}

func TestNewStore(t *testing.T) {
	t.Run("creates records in available state", func(t *testing.T) {
		store := newTestStore(t, "sk-one", "sk-two")

		assert.Equal(t, 2, store.Len())

		rec, err := store.Get(KeyID("sk-one"))
		require.NoError(t, err)
		assert.Equal(t, StatusAvailable, rec.Status)
		assert.Zero(t, rec.ConsecutiveFailures)
		assert.True(t, rec.CooldownUntil.IsZero())
	})

	t.Run("rejects empty key list", func(t *testing.T) {
		_, err := NewStore(nil, testStoreConfig())
		assert.ErrorIs(t, err, ErrNoKeys)
	})

	t.Run("rejects duplicate secrets", func(t *testing.T) {
		_, err := NewStore([]string{"sk-one", "sk-one"}, testStoreConfig())
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("copies returned by Get do not leak the secret via fields", func(t *testing.T) {
		store := newTestStore(t, "sk-one")
		rec, err := store.Get(KeyID("sk-one"))
		require.NoError(t, err)
		assert.Equal(t, "sk-one", rec.Secret())
	})
}

func TestRecordOutcome_Success(t *testing.T) {
	store := newTestStore(t, "sk-one")
	id := KeyID("sk-one")
	now := time.Now()

	t.Run("resets failure counters", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			require.NoError(t, store.RecordOutcome(id, noRetryAfter(), now))
		}
		rec, _ := store.Get(id)
		require.Equal(t, 2, rec.ConsecutiveFailures)

		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassSuccess}, now))

		rec, _ = store.Get(id)
		assert.Zero(t, rec.ConsecutiveFailures)
		assert.Zero(t, rec.AuthFailures)
	})

	t.Run("clears an active cooldown", func(t *testing.T) {
		require.NoError(t, store.RecordOutcome(id, Outcome{
			Class:      ClassRateLimited,
			RetryAfter: mo.Some(time.Minute),
		}, now))
		rec, _ := store.Get(id)
		require.Equal(t, StatusCoolingDown, rec.Status)

		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassSuccess}, now))

		rec, _ = store.Get(id)
		assert.Equal(t, StatusAvailable, rec.Status)
		assert.True(t, rec.CooldownUntil.IsZero())
	})
}

func TestRecordOutcome_AuthError(t *testing.T) {
	t.Run("disables after threshold consecutive auth errors", func(t *testing.T) {
		store := newTestStore(t, "sk-one")
		id := KeyID("sk-one")
		now := time.Now()

		for i := 0; i < 2; i++ {
			require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassAuthError}, now))
			rec, _ := store.Get(id)
			assert.NotEqual(t, StatusDisabled, rec.Status, "must not disable before threshold")
		}

		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassAuthError}, now))

		rec, _ := store.Get(id)
		assert.Equal(t, StatusDisabled, rec.Status)
		assert.Equal(t, 3, rec.AuthFailures)
	})

	t.Run("success between auth errors resets the counter", func(t *testing.T) {
		store := newTestStore(t, "sk-one")
		id := KeyID("sk-one")
		now := time.Now()

		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassAuthError}, now))
		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassAuthError}, now))
		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassSuccess}, now))
		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassAuthError}, now))

		rec, _ := store.Get(id)
		assert.Equal(t, StatusAvailable, rec.Status)
		assert.Equal(t, 1, rec.AuthFailures)
	})
}

func TestRecordOutcome_TransientError(t *testing.T) {
	store := newTestStore(t, "sk-one")
	id := KeyID("sk-one")
	now := time.Now()

	t.Run("no cooldown below threshold", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			require.NoError(t, store.RecordOutcome(id, noRetryAfter(), now))
		}
		rec, _ := store.Get(id)
		assert.Equal(t, StatusAvailable, rec.Status)
		assert.Equal(t, 2, rec.ConsecutiveFailures)
	})

	t.Run("exponential cooldown at threshold", func(t *testing.T) {
		require.NoError(t, store.RecordOutcome(id, noRetryAfter(), now))

		rec, _ := store.Get(id)
		assert.Equal(t, StatusCoolingDown, rec.Status)
		assert.Equal(t, 3, rec.ConsecutiveFailures)
		// base 1s doubled 3 times = 8s
		assert.Equal(t, now.Add(8*time.Second), rec.CooldownUntil)
	})

	t.Run("cooldown grows with further failures", func(t *testing.T) {
		require.NoError(t, store.RecordOutcome(id, noRetryAfter(), now))

		rec, _ := store.Get(id)
		assert.Equal(t, now.Add(16*time.Second), rec.CooldownUntil)
	})
}

func TestTransientCooldownCurve(t *testing.T) {
	store := newTestStore(t, "sk-one")

	assert.Equal(t, 2*time.Second, store.TransientCooldown(1))
	assert.Equal(t, 4*time.Second, store.TransientCooldown(2))
	assert.Equal(t, 8*time.Second, store.TransientCooldown(3))

	t.Run("is capped", func(t *testing.T) {
		assert.Equal(t, 5*time.Minute, store.TransientCooldown(30))
	})
}

func TestRecordOutcome_RateLimited(t *testing.T) {
	t.Run("uses retry_after when present", func(t *testing.T) {
		store := newTestStore(t, "sk-one")
		id := KeyID("sk-one")
		now := time.Now()

		require.NoError(t, store.RecordOutcome(id, Outcome{
			Class:      ClassRateLimited,
			RetryAfter: mo.Some(30 * time.Second),
		}, now))

		rec, _ := store.Get(id)
		assert.Equal(t, StatusCoolingDown, rec.Status)
		assert.Equal(t, now.Add(30*time.Second), rec.CooldownUntil)
	})

	t.Run("falls back to the default cooldown", func(t *testing.T) {
		store := newTestStore(t, "sk-one")
		id := KeyID("sk-one")
		now := time.Now()

		require.NoError(t, store.RecordOutcome(id, Outcome{
			Class:      ClassRateLimited,
			RetryAfter: mo.None[time.Duration](),
		}, now))

		rec, _ := store.Get(id)
		assert.Equal(t, now.Add(time.Minute), rec.CooldownUntil)
	})

	t.Run("does not resurrect a disabled key", func(t *testing.T) {
		store := newTestStore(t, "sk-one")
		id := KeyID("sk-one")
		now := time.Now()

		require.NoError(t, store.MarkDisabled(id))
		require.NoError(t, store.RecordOutcome(id, Outcome{
			Class:      ClassRateLimited,
			RetryAfter: mo.Some(time.Second),
		}, now))

		rec, _ := store.Get(id)
		assert.Equal(t, StatusDisabled, rec.Status)
	})
}

func TestClearExpiredCooldowns(t *testing.T) {
	store := newTestStore(t, "sk-one", "sk-two")
	id1 := KeyID("sk-one")
	id2 := KeyID("sk-two")
	now := time.Now()

	require.NoError(t, store.MarkCooldown(id1, now.Add(10*time.Second)))
	require.NoError(t, store.MarkCooldown(id2, now.Add(60*time.Second)))

	store.ClearExpiredCooldowns(now.Add(30 * time.Second))

	rec1, _ := store.Get(id1)
	rec2, _ := store.Get(id2)
	assert.Equal(t, StatusAvailable, rec1.Status)
	assert.True(t, rec1.CooldownUntil.IsZero())
	assert.Equal(t, StatusCoolingDown, rec2.Status)

	t.Run("cooldown ending exactly now counts as expired", func(t *testing.T) {
		store.ClearExpiredCooldowns(now.Add(60 * time.Second))
		rec2, _ := store.Get(id2)
		assert.Equal(t, StatusAvailable, rec2.Status)
	})

	t.Run("disabled keys stay disabled", func(t *testing.T) {
		require.NoError(t, store.MarkDisabled(id1))
		store.ClearExpiredCooldowns(now.Add(time.Hour))
		rec1, _ := store.Get(id1)
		assert.Equal(t, StatusDisabled, rec1.Status)
	})
}

func TestMarkAvailable(t *testing.T) {
	store := newTestStore(t, "sk-one")
	id := KeyID("sk-one")
	now := time.Now()

	// Drive the key into the disabled state.
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordOutcome(id, Outcome{Class: ClassAuthError}, now))
	}
	rec, _ := store.Get(id)
	require.Equal(t, StatusDisabled, rec.Status)

	require.NoError(t, store.MarkAvailable(id))

	rec, _ = store.Get(id)
	assert.Equal(t, StatusAvailable, rec.Status)
	assert.Zero(t, rec.AuthFailures)
	assert.Zero(t, rec.ConsecutiveFailures)
}

func TestStore_UnknownKey(t *testing.T) {
	store := newTestStore(t, "sk-one")

	_, err := store.Get("deadbeef")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.ErrorIs(t, store.Touch("deadbeef", time.Now()), ErrKeyNotFound)
	assert.ErrorIs(t, store.MarkDisabled("deadbeef"), ErrKeyNotFound)
	assert.ErrorIs(t, store.RecordOutcome("deadbeef", Outcome{Class: ClassSuccess}, time.Now()), ErrKeyNotFound)
}
