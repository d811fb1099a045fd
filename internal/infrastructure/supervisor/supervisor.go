// Package supervisor runs the background probe loop that drives the
// terminal's connectivity state machine.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/connectivity"
	"github.com/clinic/terminal/internal/infrastructure/config"
)

// Supervisor probes the central server on a fixed interval and feeds
// the results into the connectivity tracker. It is the only writer of
// the connectivity state; everything else reads snapshots or subscribes
// to transitions.
type Supervisor struct {
	gateway authority.Gateway
	cfg     config.ConnectivityConfig
	logger  *zap.Logger

	mu      sync.RWMutex
	tracker *connectivity.Tracker
	subs    []chan connectivity.Snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a supervisor. The tracker starts ONLINE; the first probe
// runs immediately on Start, so a dead server is noticed within one
// interval of boot.
func New(gateway authority.Gateway, cfg config.ConnectivityConfig, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.Named("supervisor"),
		tracker: connectivity.NewTracker(cfg.FailureThreshold, cfg.LockWindow, time.Now()),
	}
}

// Start starts the probe loop
func (s *Supervisor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.probeLoop(ctx)

	s.logger.Info("connectivity supervisor started",
		zap.Duration("probe_interval", s.cfg.ProbeInterval),
		zap.Int("failure_threshold", s.cfg.FailureThreshold),
		zap.Duration("lock_window", s.cfg.LockWindow),
	)
	return nil
}

// Stop gracefully stops the probe loop
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("connectivity supervisor stopped")
}

// Snapshot returns the current connectivity verdict.
func (s *Supervisor) Snapshot() connectivity.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.Snapshot()
}

// State returns the current connectivity state.
func (s *Supervisor) State() connectivity.State {
	return s.Snapshot().State
}

// Online reports whether the terminal currently trusts the link.
func (s *Supervisor) Online() bool {
	return s.State() == connectivity.StateOnline
}

// Subscribe returns a channel that receives a snapshot on every state
// transition. The channel is buffered; a slow subscriber drops
// intermediate transitions instead of blocking the probe loop.
func (s *Supervisor) Subscribe() <-chan connectivity.Snapshot {
	ch := make(chan connectivity.Snapshot, 4)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// ReportSuccess feeds an out-of-band success, e.g. a sync push that went
// through between probes. Recovery should not wait for the next tick.
func (s *Supervisor) ReportSuccess() {
	s.record(true)
}

// ReportFailure feeds an out-of-band failure.
func (s *Supervisor) ReportFailure() {
	s.record(false)
}

func (s *Supervisor) probeLoop(ctx context.Context) {
	defer s.wg.Done()

	s.probe(ctx)

	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Supervisor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	err := s.gateway.Health(probeCtx)
	if ctx.Err() != nil {
		// shutting down, not a verdict
		return
	}
	s.record(err == nil)
}

func (s *Supervisor) record(success bool) {
	now := time.Now()

	s.mu.Lock()
	var state connectivity.State
	var changed bool
	if success {
		state, changed = s.tracker.RecordSuccess(now)
	} else {
		state, changed = s.tracker.RecordFailure(now)
	}
	snapshot := s.tracker.Snapshot()
	subs := s.subs
	s.mu.Unlock()

	if !changed {
		return
	}

	s.logger.Warn("connectivity state changed",
		zap.String("state", string(state)),
		zap.Int("consecutive_failures", snapshot.ConsecutiveFailures),
	)
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
