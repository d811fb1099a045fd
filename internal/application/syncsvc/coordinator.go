// Package syncsvc drains the pending-record queue to the central server
// and keeps the local reference-data mirror fresh. A single goroutine
// owns the drain; everything else just kicks it.
package syncsvc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/application/pool"
	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/billing"
	"github.com/clinic/terminal/internal/domain/catalog"
	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
)

// Connectivity is the slice of the supervisor the coordinator needs.
type Connectivity interface {
	Online() bool
	ReportSuccess()
	ReportFailure()
}

// Options tunes the coordinator loop.
type Options struct {
	// DrainBatchSize caps how many records one pass claims.
	DrainBatchSize int
	// DrainOnStart triggers a pass as soon as the loop starts.
	DrainOnStart bool
	// SyncedRetention is how long acknowledged records stay around for
	// the operator before cleanup deletes them.
	SyncedRetention time.Duration
	// Interval is the cadence of unprompted passes. Each pass also
	// reports pool usage and tops up headroom.
	Interval time.Duration
}

// Coordinator pushes locally created records to the authority in
// creation order and pulls reference data down. It is the only writer
// of sync state; handlers and services reach it through Kick only.
type Coordinator struct {
	queue    syncqueue.Repository
	gateway  authority.Gateway
	conn     Connectivity
	patients patient.Repository
	invoices billing.InvoiceRepository
	catalog  catalog.Repository
	pool     *pool.Service
	opts     Options
	logger   *zap.Logger

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a new sync coordinator
func NewCoordinator(
	queue syncqueue.Repository,
	gateway authority.Gateway,
	conn Connectivity,
	patients patient.Repository,
	invoices billing.InvoiceRepository,
	catalogRepo catalog.Repository,
	poolSvc *pool.Service,
	opts Options,
	logger *zap.Logger,
) *Coordinator {
	if opts.DrainBatchSize <= 0 {
		opts.DrainBatchSize = 50
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Coordinator{
		queue:    queue,
		gateway:  gateway,
		conn:     conn,
		patients: patients,
		invoices: invoices,
		catalog:  catalogRepo,
		pool:     poolSvc,
		opts:     opts,
		logger:   logger.Named("sync"),
		kick:     make(chan struct{}, 1),
	}
}

// Start launches the drain loop.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.loop(ctx)
	c.logger.Info("sync coordinator started",
		zap.Duration("interval", c.opts.Interval),
		zap.Int("batch_size", c.opts.DrainBatchSize))
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("sync coordinator stopped")
}

// Kick asks for a pass soon. Safe from any goroutine; a pending kick
// absorbs further ones.
func (c *Coordinator) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()

	if c.opts.DrainOnStart {
		c.pass(ctx)
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			c.pass(ctx)
		case <-ticker.C:
			c.pass(ctx)
		}
	}
}

// pass runs one full maintenance round: drain the queue, report pool
// usage, top up headroom, clean up old acknowledged records.
func (c *Coordinator) pass(ctx context.Context) {
	if !c.conn.Online() {
		return
	}

	if n, err := c.DrainPending(ctx); err != nil {
		c.logger.Warn("drain aborted", zap.Int("pushed", n), zap.Error(err))
	} else if n > 0 {
		c.logger.Info("queue drained", zap.Int("pushed", n))
	}

	if err := c.pool.ReportUsage(ctx); err != nil {
		c.logger.Warn("usage report failed", zap.Error(err))
	}
	if err := c.pool.EnsureHeadroom(ctx); err != nil {
		c.logger.Warn("pool replenish failed", zap.Error(err))
	}

	if c.opts.SyncedRetention > 0 {
		cutoff := time.Now().Add(-c.opts.SyncedRetention)
		if n, err := c.queue.DeleteSyncedBefore(ctx, cutoff); err != nil {
			c.logger.Warn("retention cleanup failed", zap.Error(err))
		} else if n > 0 {
			c.logger.Debug("synced records cleaned up", zap.Int64("deleted", n))
		}
	}
}

// DrainPending pushes due records in creation order. It returns how
// many records the authority acknowledged. A transport failure aborts
// the pass and consumes no retry budget; a rejection parks the record
// and the drain moves on.
func (c *Coordinator) DrainPending(ctx context.Context) (int, error) {
	pushed := 0
	for {
		due, err := c.queue.FindDue(ctx, time.Now(), c.opts.DrainBatchSize)
		if err != nil {
			return pushed, err
		}
		if len(due) == 0 {
			return pushed, nil
		}

		progressed := false
		for _, record := range due {
			ok, err := c.pushOne(ctx, record)
			if err != nil {
				return pushed, err
			}
			if ok {
				pushed++
				progressed = true
			}
		}
		// every record in the batch was gated or parked; a re-query
		// would return the same set
		if !progressed {
			return pushed, nil
		}
	}
}

// pushOne uploads one record. It returns (false, nil) when the record
// was skipped or parked, and a non-nil error only for transport
// failures that must abort the whole drain.
func (c *Coordinator) pushOne(ctx context.Context, record *syncqueue.PendingRecord) (bool, error) {
	if record.DependsOn != nil {
		dep, err := c.queue.FindByID(ctx, *record.DependsOn)
		if err != nil {
			return false, err
		}
		// never push an invoice before the server knows its patient
		if dep.State != syncqueue.StateSynced {
			return false, nil
		}
	}

	payload, err := c.refreshPayload(ctx, record)
	if err != nil {
		c.logger.Warn("record skipped, payload refresh failed",
			zap.String("record_id", record.ID.String()), zap.Error(err))
		return false, nil
	}

	if err := record.MarkSyncing(); err != nil {
		return false, nil
	}
	if err := c.queue.Update(ctx, record); err != nil {
		return false, err
	}

	result, err := c.gateway.Push(ctx, record.EntityType, payload)
	if errors.Is(err, shared.ErrConnectivityTimeout) {
		c.conn.ReportFailure()
		record.ReleaseClaim()
		if uerr := c.queue.Update(ctx, record); uerr != nil {
			return false, uerr
		}
		return false, err
	}
	c.conn.ReportSuccess()

	if err != nil {
		record.MarkFailed(err.Error())
		if uerr := c.queue.Update(ctx, record); uerr != nil {
			return false, uerr
		}
		c.logger.Warn("record rejected by server",
			zap.String("record_id", record.ID.String()),
			zap.String("entity_type", string(record.EntityType)),
			zap.Int("retry_count", record.RetryCount),
			zap.Bool("parked", record.NeedsOperator()),
			zap.Error(err))
		return false, nil
	}

	record.MarkSynced(result.RemoteID)
	if err := c.queue.Update(ctx, record); err != nil {
		return false, err
	}
	if err := c.markEntitySynced(ctx, record, result.RemoteID); err != nil {
		return false, err
	}
	return true, nil
}

// refreshPayload re-reads the mutable parts of a queued payload right
// before the push: the patient's authority id lands on invoices created
// while the patient was still local-only, and a void that happened
// after enqueueing travels with the invoice.
func (c *Coordinator) refreshPayload(ctx context.Context, record *syncqueue.PendingRecord) ([]byte, error) {
	if record.EntityType != syncqueue.EntityInvoice {
		return record.Payload, nil
	}

	var body map[string]any
	if err := json.Unmarshal(record.Payload, &body); err != nil {
		return nil, err
	}

	inv, err := c.invoices.FindByID(ctx, record.EntityID)
	if err != nil {
		return nil, err
	}
	body["status"] = string(inv.Status)

	pat, err := c.patients.FindByID(ctx, inv.PatientID)
	if err != nil {
		return nil, err
	}
	if pat.RemoteID != "" {
		body["patient_id"] = pat.RemoteID
	}
	return json.Marshal(body)
}

// markEntitySynced writes the authority's durable id back onto the
// local entity.
func (c *Coordinator) markEntitySynced(ctx context.Context, record *syncqueue.PendingRecord, remoteID string) error {
	switch record.EntityType {
	case syncqueue.EntityPatient:
		p, err := c.patients.FindByID(ctx, record.EntityID)
		if err != nil {
			return err
		}
		p.MarkSynced(remoteID)
		return c.patients.Update(ctx, p)
	case syncqueue.EntityInvoice:
		inv, err := c.invoices.FindByID(ctx, record.EntityID)
		if err != nil {
			return err
		}
		inv.MarkSynced(remoteID)
		return c.invoices.Update(ctx, inv)
	}
	return nil
}

// BootstrapResult summarizes one reference-data pull.
type BootstrapResult struct {
	Studies   int `json:"studies"`
	Branches  int `json:"branches"`
	Equipment int `json:"equipment"`
	Staff     int `json:"staff"`
	Patients  int `json:"patients"`
}

// Bootstrap pulls the reference-data mirror and the patient directory,
// then tops up identifier headroom. All writes are upserts, so running
// it twice is harmless.
func (c *Coordinator) Bootstrap(ctx context.Context, patientsSince time.Time) (*BootstrapResult, error) {
	snapshot, err := c.gateway.FetchCatalog(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrConnectivityTimeout) {
			c.conn.ReportFailure()
		}
		return nil, err
	}
	c.conn.ReportSuccess()

	if err := c.catalog.UpsertStudies(ctx, snapshot.Studies); err != nil {
		return nil, err
	}
	if err := c.catalog.UpsertBranches(ctx, snapshot.Branches); err != nil {
		return nil, err
	}
	if err := c.catalog.UpsertEquipment(ctx, snapshot.Equipment); err != nil {
		return nil, err
	}
	if err := c.catalog.UpsertStaff(ctx, snapshot.Staff); err != nil {
		return nil, err
	}

	pulled, err := c.gateway.FetchPatients(ctx, patientsSince)
	if err != nil {
		return nil, err
	}
	for _, p := range pulled {
		if err := c.patients.Upsert(ctx, p); err != nil {
			return nil, err
		}
	}

	if err := c.pool.EnsureHeadroom(ctx); err != nil {
		c.logger.Warn("pool replenish after bootstrap failed", zap.Error(err))
	}

	result := &BootstrapResult{
		Studies:   len(snapshot.Studies),
		Branches:  len(snapshot.Branches),
		Equipment: len(snapshot.Equipment),
		Staff:     len(snapshot.Staff),
		Patients:  len(pulled),
	}
	c.logger.Info("bootstrap completed",
		zap.Int("studies", result.Studies),
		zap.Int("branches", result.Branches),
		zap.Int("equipment", result.Equipment),
		zap.Int("staff", result.Staff),
		zap.Int("patients", result.Patients))
	return result, nil
}

// QueueStatus is the operator view of the queue.
type QueueStatus struct {
	Pending int64 `json:"pending"`
	Syncing int64 `json:"syncing"`
	Synced  int64 `json:"synced"`
	Failed  int64 `json:"failed"`
}

// Status counts queue records per state.
func (c *Coordinator) Status(ctx context.Context) (*QueueStatus, error) {
	st := &QueueStatus{}
	for _, pair := range []struct {
		state syncqueue.SyncState
		dst   *int64
	}{
		{syncqueue.StatePending, &st.Pending},
		{syncqueue.StateSyncing, &st.Syncing},
		{syncqueue.StateSynced, &st.Synced},
		{syncqueue.StateFailed, &st.Failed},
	} {
		n, err := c.queue.CountByState(ctx, pair.state)
		if err != nil {
			return nil, err
		}
		*pair.dst = n
	}
	return st, nil
}

// ListParked returns records that exhausted their retries and wait for
// an operator.
func (c *Coordinator) ListParked(ctx context.Context, limit int) ([]*syncqueue.PendingRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	failed, err := c.queue.ListByState(ctx, syncqueue.StateFailed, limit)
	if err != nil {
		return nil, err
	}
	parked := failed[:0]
	for _, r := range failed {
		if r.NeedsOperator() {
			parked = append(parked, r)
		}
	}
	return parked, nil
}

// ResetRecord clears a parked record after the operator fixed the
// underlying conflict, and kicks a pass.
func (c *Coordinator) ResetRecord(ctx context.Context, id uuid.UUID) (*syncqueue.PendingRecord, error) {
	record, err := c.queue.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := record.ResetForRetry(); err != nil {
		return nil, shared.NewDomainError("NOT_PARKED", err.Error())
	}
	if err := c.queue.Update(ctx, record); err != nil {
		return nil, err
	}
	c.logger.Info("parked record reset", zap.String("record_id", record.ID.String()))
	c.Kick()
	return record, nil
}
