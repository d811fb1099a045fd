package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/shared"
)

// Connectivity is the slice of the supervisor the pool service needs.
type Connectivity interface {
	Online() bool
}

// Options configure the pool service.
type Options struct {
	TerminalID   string
	BranchCode   string
	BatchSize    int64 // identifiers requested per grant
	LowWaterMark int64 // remaining headroom that triggers replenishment
}

// Service manages the terminal's identifier reservations. All
// allocations on this terminal are serialized through its mutex, so the
// pool cursor can never be advanced twice to the same value by
// concurrent requests.
type Service struct {
	ranges      idpool.RangeRepository
	allocations idpool.AllocationRepository
	gateway     authority.Gateway
	conn        Connectivity
	opts        Options
	logger      *zap.Logger

	mu sync.Mutex
}

// NewService creates a new pool service
func NewService(
	ranges idpool.RangeRepository,
	allocations idpool.AllocationRepository,
	gateway authority.Gateway,
	conn Connectivity,
	opts Options,
	logger *zap.Logger,
) *Service {
	return &Service{
		ranges:      ranges,
		allocations: allocations,
		gateway:     gateway,
		conn:        conn,
		opts:        opts,
		logger:      logger.Named("pool"),
	}
}

// WithAllocation draws the next identifier of the kind and hands it to
// persist, which must commit the advanced range and the allocation in
// one transaction (billing does this through CreateIssued). The mutex
// is held across persist so a second caller cannot draw the same value
// before the first one commits.
//
// When every local range is spent the service tries one synchronous
// replenishment if the terminal is online; otherwise the caller gets
// shared.ErrPoolExhausted and the operation is rejected.
func (s *Service) WithAllocation(ctx context.Context, kind idpool.Kind, persist func(rng *idpool.Range, alloc *idpool.Allocation) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rng, err := s.activeRange(ctx, kind)
	if err != nil {
		return err
	}

	alloc, err := rng.Allocate()
	if err != nil {
		// the range was already spent on disk; retire it and retry once
		if updateErr := s.ranges.Update(ctx, rng); updateErr != nil {
			return updateErr
		}
		rng, err = s.activeRange(ctx, kind)
		if err != nil {
			return err
		}
		alloc, err = rng.Allocate()
		if err != nil {
			return err
		}
	}

	return persist(rng, alloc)
}

// Allocate draws one standalone barcode identifier (lab order, sample
// tube) and commits the advanced range together with the allocation.
// These codes are printed at intake and reconciled later; unlike an
// invoice number the draw itself is the whole document, so it persists
// through AppendDrawn instead of traveling inside an issuance
// transaction. Invoice numbers are refused here: they must never exist
// without an invoice.
func (s *Service) Allocate(ctx context.Context, kind idpool.Kind) (*idpool.Allocation, error) {
	if !kind.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	if kind == idpool.KindInvoice {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice numbers are drawn only at issuance")
	}

	var drawn *idpool.Allocation
	err := s.WithAllocation(ctx, kind, func(rng *idpool.Range, alloc *idpool.Allocation) error {
		if err := s.allocations.AppendDrawn(ctx, rng, alloc); err != nil {
			return err
		}
		drawn = alloc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("barcode allocated",
		zap.String("kind", string(kind)),
		zap.String("code", drawn.Code))
	return drawn, nil
}

// activeRange finds a range with headroom, replenishing synchronously
// when the pool ran dry and the server is reachable.
func (s *Service) activeRange(ctx context.Context, kind idpool.Kind) (*idpool.Range, error) {
	rng, err := s.ranges.FindActive(ctx, kind)
	if err == nil {
		return rng, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if !s.conn.Online() {
		s.logger.Warn("pool exhausted while offline", zap.String("kind", string(kind)))
		return nil, shared.ErrPoolExhausted
	}

	if _, err := s.requestRange(ctx, kind); err != nil {
		s.logger.Warn("synchronous replenishment failed",
			zap.String("kind", string(kind)), zap.Error(err))
		return nil, shared.ErrPoolExhausted
	}
	return s.ranges.FindActive(ctx, kind)
}

// requestRange asks the server for a fresh grant and stores it.
func (s *Service) requestRange(ctx context.Context, kind idpool.Kind) (*idpool.Range, error) {
	grant, err := s.gateway.RequestRange(ctx, authority.RangeRequest{
		Kind:       kind,
		TerminalID: s.opts.TerminalID,
		BranchCode: s.opts.BranchCode,
		Size:       s.opts.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	rng, err := idpool.NewRange(grant.AuthorityID, grant.BatchID, kind, grant.Prefix, grant.Start, grant.End, s.opts.TerminalID)
	if err != nil {
		return nil, err
	}
	if err := s.ranges.Save(ctx, rng); err != nil {
		// A grant that cannot be stored is forfeited; the server burns
		// the block rather than risk a duplicate.
		return nil, err
	}

	s.logger.Info("range stored",
		zap.String("kind", string(kind)),
		zap.String("batch_id", rng.BatchID),
		zap.Int64("size", rng.Size()))
	return rng, nil
}

// EnsureHeadroom replenishes every kind whose remaining headroom fell
// below the low-water mark. It is a no-op while offline; the next drain
// cycle will call it again.
func (s *Service) EnsureHeadroom(ctx context.Context) error {
	if !s.conn.Online() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range idpool.AllKinds() {
		remaining, err := s.ranges.Remaining(ctx, kind)
		if err != nil {
			return err
		}
		if remaining > s.opts.LowWaterMark {
			continue
		}
		if _, err := s.requestRange(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// ReportUsage tells the server the highest consumed value of every
// range with unreported usage.
func (s *Service) ReportUsage(ctx context.Context) error {
	if !s.conn.Online() {
		return nil
	}

	ranges, err := s.ranges.List(ctx)
	if err != nil {
		return err
	}

	for _, rng := range ranges {
		lastUsed, ok := rng.Unreported()
		if !ok {
			continue
		}
		if err := s.gateway.ReportUsage(ctx, rng.BatchID, lastUsed); err != nil {
			return err
		}
		rng.MarkReported(lastUsed)
		if err := s.ranges.Update(ctx, rng); err != nil {
			return err
		}
	}
	return nil
}

// ReturnUnused gives the unused tail of a batch back to the server and
// retires the range locally. This is an explicit administrative action,
// typically when decommissioning the terminal; it never happens
// automatically.
func (s *Service) ReturnUnused(ctx context.Context, batchID string) error {
	if !s.conn.Online() {
		return shared.ErrConnectivityTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rng, err := s.ranges.FindByBatchID(ctx, batchID)
	if err != nil {
		return err
	}
	if rng.Remaining() == 0 {
		return shared.NewDomainError("NOTHING_TO_RETURN", "Range has no unused tail")
	}

	if err := s.gateway.ReturnRange(ctx, batchID, rng.NextUnused); err != nil {
		return err
	}

	rng.Exhausted = true
	if err := s.ranges.Update(ctx, rng); err != nil {
		return err
	}

	s.logger.Info("range returned",
		zap.String("batch_id", batchID),
		zap.Int64("from", rng.NextUnused))
	return nil
}

// KindStatus describes one kind's reservation headroom.
type KindStatus struct {
	Kind      idpool.Kind `json:"kind"`
	Remaining int64       `json:"remaining"`
	LowWater  bool        `json:"low_water"`
	Ranges    []RangeDTO  `json:"ranges"`
}

// RangeDTO is the UI view of one reserved range.
type RangeDTO struct {
	BatchID    string    `json:"batch_id"`
	Prefix     string    `json:"prefix"`
	Start      int64     `json:"start"`
	End        int64     `json:"end"`
	NextUnused int64     `json:"next_unused"`
	Remaining  int64     `json:"remaining"`
	Exhausted  bool      `json:"exhausted"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Status reports per-kind headroom for the UI status panel.
func (s *Service) Status(ctx context.Context) ([]KindStatus, error) {
	statuses := make([]KindStatus, 0, len(idpool.AllKinds()))
	for _, kind := range idpool.AllKinds() {
		ranges, err := s.ranges.ListByKind(ctx, kind)
		if err != nil {
			return nil, err
		}

		status := KindStatus{Kind: kind}
		for _, rng := range ranges {
			status.Remaining += rng.Remaining()
			status.Ranges = append(status.Ranges, RangeDTO{
				BatchID:    rng.BatchID,
				Prefix:     rng.Prefix,
				Start:      rng.Start,
				End:        rng.End,
				NextUnused: rng.NextUnused,
				Remaining:  rng.Remaining(),
				Exhausted:  rng.Exhausted,
				IssuedAt:   rng.IssuedAt,
			})
		}
		status.LowWater = status.Remaining <= s.opts.LowWaterMark
		statuses = append(statuses, status)
	}
	return statuses, nil
}
