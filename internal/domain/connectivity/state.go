package connectivity

import (
	"time"
)

// State is the process-wide connectivity verdict about the authority.
// It is owned by the supervisor; every other component only reads it.
type State string

const (
	// StateOnline means the authority answered the most recent probe.
	StateOnline State = "ONLINE"
	// StateDegraded means probes are failing but the hysteresis window
	// has not elapsed; writes still proceed locally, the UI warns.
	StateDegraded State = "DEGRADED"
	// StateLocked is the fail-closed state: the authority has been
	// unreachable beyond the hysteresis window and all mutating actions
	// except the local-safe set are disabled.
	StateLocked State = "LOCKED"
)

// Snapshot is the read-only view handed to subscribers and the UI.
type Snapshot struct {
	State               State
	LastChangeAt        time.Time
	ConsecutiveFailures int
}

// Tracker derives the connectivity state from a stream of probe results.
// It is a plain value with no clock of its own, so transitions are
// testable deterministically; the supervisor feeds it wall time.
type Tracker struct {
	state               State
	lastChangeAt        time.Time
	consecutiveFailures int
	degradedSince       time.Time

	failureThreshold int           // consecutive failures before DEGRADED
	lockWindow       time.Duration // time in DEGRADED before LOCKED
}

// NewTracker creates a tracker that starts ONLINE.
func NewTracker(failureThreshold int, lockWindow time.Duration, now time.Time) *Tracker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Tracker{
		state:            StateOnline,
		lastChangeAt:     now,
		failureThreshold: failureThreshold,
		lockWindow:       lockWindow,
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Snapshot returns the current state with its metadata.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		State:               t.state,
		LastChangeAt:        t.lastChangeAt,
		ConsecutiveFailures: t.consecutiveFailures,
	}
}

// RecordSuccess feeds a successful probe. Any success returns the tracker
// to ONLINE immediately; there is no hysteresis on recovery.
func (t *Tracker) RecordSuccess(now time.Time) (State, bool) {
	t.consecutiveFailures = 0
	t.degradedSince = time.Time{}
	return t.transition(StateOnline, now)
}

// RecordFailure feeds a failed probe. A single failure never leaves
// ONLINE; the threshold moves the tracker to DEGRADED and the lock
// window, counted from the first failure of the streak, to LOCKED.
func (t *Tracker) RecordFailure(now time.Time) (State, bool) {
	t.consecutiveFailures++
	if t.consecutiveFailures == 1 {
		t.degradedSince = now
	}

	if t.consecutiveFailures < t.failureThreshold {
		return t.state, false
	}

	if t.state == StateOnline {
		return t.transition(StateDegraded, now)
	}
	if t.state == StateDegraded && now.Sub(t.degradedSince) >= t.lockWindow {
		return t.transition(StateLocked, now)
	}
	return t.state, false
}

func (t *Tracker) transition(next State, now time.Time) (State, bool) {
	if t.state == next {
		return t.state, false
	}
	t.state = next
	t.lastChangeAt = now
	return t.state, true
}
