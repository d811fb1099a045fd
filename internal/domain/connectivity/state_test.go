package connectivity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerStartsOnline(t *testing.T) {
	now := time.Now()
	tr := NewTracker(3, 30*time.Second, now)

	assert.Equal(t, StateOnline, tr.State())
	assert.Equal(t, 0, tr.Snapshot().ConsecutiveFailures)
}

func TestTrackerHysteresis(t *testing.T) {
	t.Run("single failure does not leave ONLINE", func(t *testing.T) {
		now := time.Now()
		tr := NewTracker(3, 30*time.Second, now)

		state, changed := tr.RecordFailure(now)
		assert.Equal(t, StateOnline, state)
		assert.False(t, changed)

		state, changed = tr.RecordSuccess(now.Add(time.Second))
		assert.Equal(t, StateOnline, state)
		assert.False(t, changed)
		assert.Equal(t, 0, tr.Snapshot().ConsecutiveFailures)
	})

	t.Run("threshold failures degrade", func(t *testing.T) {
		now := time.Now()
		tr := NewTracker(3, 30*time.Second, now)

		tr.RecordFailure(now)
		tr.RecordFailure(now.Add(time.Second))
		state, changed := tr.RecordFailure(now.Add(2 * time.Second))

		assert.Equal(t, StateDegraded, state)
		assert.True(t, changed)
		assert.Equal(t, 3, tr.Snapshot().ConsecutiveFailures)
	})

	t.Run("success resets the streak", func(t *testing.T) {
		now := time.Now()
		tr := NewTracker(3, 30*time.Second, now)

		tr.RecordFailure(now)
		tr.RecordFailure(now.Add(time.Second))
		tr.RecordSuccess(now.Add(2 * time.Second))
		tr.RecordFailure(now.Add(3 * time.Second))
		tr.RecordFailure(now.Add(4 * time.Second))

		assert.Equal(t, StateOnline, tr.State())
	})
}

func TestTrackerLockout(t *testing.T) {
	t.Run("locks after window elapses in DEGRADED", func(t *testing.T) {
		now := time.Now()
		tr := NewTracker(2, 30*time.Second, now)

		tr.RecordFailure(now)
		tr.RecordFailure(now.Add(5 * time.Second)) // DEGRADED
		assert.Equal(t, StateDegraded, tr.State())

		state, changed := tr.RecordFailure(now.Add(20 * time.Second))
		assert.Equal(t, StateDegraded, state)
		assert.False(t, changed)

		// Window counts from the first failure of the streak.
		state, changed = tr.RecordFailure(now.Add(31 * time.Second))
		assert.Equal(t, StateLocked, state)
		assert.True(t, changed)
	})

	t.Run("recovers from LOCKED on a single success", func(t *testing.T) {
		now := time.Now()
		tr := NewTracker(2, 10*time.Second, now)

		tr.RecordFailure(now)
		tr.RecordFailure(now.Add(time.Second))
		tr.RecordFailure(now.Add(11 * time.Second))
		assert.Equal(t, StateLocked, tr.State())

		state, changed := tr.RecordSuccess(now.Add(12 * time.Second))
		assert.Equal(t, StateOnline, state)
		assert.True(t, changed)
	})

	t.Run("repeated failures in LOCKED do not re-transition", func(t *testing.T) {
		now := time.Now()
		tr := NewTracker(1, time.Second, now)

		tr.RecordFailure(now)
		tr.RecordFailure(now.Add(2 * time.Second))
		assert.Equal(t, StateLocked, tr.State())

		_, changed := tr.RecordFailure(now.Add(3 * time.Second))
		assert.False(t, changed)
	})
}
