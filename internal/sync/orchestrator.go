// Package sync implements the sync orchestrator: per-entity-type leases,
// watermark-driven incremental sync against the upstream marketing
// platform, and a cron-driven scheduler for the cadences spec §4.4 defines.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/analytics-sync/backend/infrastructure/logging"
	"github.com/analytics-sync/backend/infrastructure/metrics"
	"github.com/analytics-sync/backend/internal/model"
	"github.com/analytics-sync/backend/internal/repository"
	"github.com/analytics-sync/backend/internal/sync/lease"
)

// Config controls orchestrator-wide limits.
type Config struct {
	JobDeadline              time.Duration
	MaxConcurrentEntityTypes int
	LeaseTTL                 time.Duration
}

func DefaultConfig() Config {
	return Config{
		JobDeadline:              10 * time.Minute,
		MaxConcurrentEntityTypes: 4,
		LeaseTTL:                 15 * time.Minute,
	}
}

// EntityResult is the per-entity-type outcome of a sync run.
type EntityResult struct {
	OK         bool   `json:"success"`
	Count      int    `json:"recordCount"`
	DurationMS int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Options parameterizes a single entity-type or fan-out sync run.
type Options struct {
	Force       bool
	Since       *time.Time
	EntityTypes []string // empty means "all registered entity types"
}

// Orchestrator runs sync jobs against registered EntitySyncers, enforcing
// the exclusive-lease, watermark-advance, and bounded-fan-out rules.
type Orchestrator struct {
	leaseMgr   lease.Manager
	statusRepo *repository.SyncStatusRepository
	syncers    map[string]EntitySyncer
	cfg        Config
	logger     *logging.Logger
}

func NewOrchestrator(leaseMgr lease.Manager, statusRepo *repository.SyncStatusRepository, cfg Config, logger *logging.Logger) *Orchestrator {
	if cfg.JobDeadline <= 0 {
		cfg.JobDeadline = 10 * time.Minute
	}
	if cfg.MaxConcurrentEntityTypes <= 0 {
		cfg.MaxConcurrentEntityTypes = 4
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 15 * time.Minute
	}
	return &Orchestrator{
		leaseMgr:   leaseMgr,
		statusRepo: statusRepo,
		syncers:    make(map[string]EntitySyncer),
		cfg:        cfg,
		logger:     logger,
	}
}

func (o *Orchestrator) Register(s EntitySyncer) {
	o.syncers[s.EntityType()] = s
}

func (o *Orchestrator) EntityTypes() []string {
	types := make([]string, 0, len(o.syncers))
	for t := range o.syncers {
		types = append(types, t)
	}
	return types
}

// RunEntityType executes the full job contract for a single entity type:
// acquire the exclusive lease, read the watermark, sync, advance the
// watermark only up to what was actually committed, and always release the
// lease.
func (o *Orchestrator) RunEntityType(ctx context.Context, entityType string, opts Options) EntityResult {
	start := time.Now()
	syncer, ok := o.syncers[entityType]
	if !ok {
		return EntityResult{OK: false, Error: fmt.Sprintf("unknown entity type %q", entityType)}
	}

	release, err := o.leaseMgr.TryAcquire(ctx, entityType, o.cfg.LeaseTTL)
	if err != nil {
		if o.logger != nil {
			o.logger.WithContext(ctx).WithFields(map[string]interface{}{"entity_type": entityType}).Warn("sync: lease already held, dropping run")
		}
		return EntityResult{OK: false, Error: "sync already running for this entity type"}
	}
	defer release()

	jobCtx, cancel := context.WithTimeout(ctx, o.cfg.JobDeadline)
	defer cancel()

	if err := o.statusRepo.Upsert(jobCtx, model.SyncStatus{
		EntityType:        entityType,
		LastSyncStartedAt: timePtr(start),
		Status:            model.SyncStateRunning,
	}); err != nil && o.logger != nil {
		o.logger.WithContext(jobCtx).WithError(err).Warn("sync: failed to record job start")
	}

	since, err := o.resolveSince(jobCtx, entityType, opts)
	if err != nil {
		return o.fail(jobCtx, entityType, start, err)
	}

	count, watermark, syncErr := syncer.Sync(jobCtx, since)

	completedAt := time.Now()
	status := model.SyncStateSucceeded
	var errMsg *string
	if syncErr != nil {
		status = model.SyncStateFailed
		msg := syncErr.Error()
		errMsg = &msg
	}

	if err := o.statusRepo.Upsert(context.Background(), model.SyncStatus{
		EntityType:          entityType,
		LastSyncStartedAt:   timePtr(start),
		LastSyncCompletedAt: timePtr(completedAt),
		LastWatermark:       watermark,
		Status:              status,
		RecordCount:         int64(count),
		ErrorMessage:        errMsg,
	}); err != nil && o.logger != nil {
		o.logger.WithContext(jobCtx).WithError(err).Warn("sync: failed to record job completion")
	}

	metrics.Global().RecordSyncJob("sync", entityType, string(status), time.Since(start), count)
	metrics.Global().SetSyncWatermarkAge("sync", entityType, time.Since(watermark))

	if o.logger != nil {
		o.logger.LogSyncJob(jobCtx, entityType, count, watermark, time.Since(start), syncErr)
	}

	result := EntityResult{OK: syncErr == nil, Count: count, DurationMS: time.Since(start).Milliseconds()}
	if syncErr != nil {
		result.Error = syncErr.Error()
	}
	return result
}

func (o *Orchestrator) fail(ctx context.Context, entityType string, start time.Time, err error) EntityResult {
	msg := err.Error()
	_ = o.statusRepo.Upsert(context.Background(), model.SyncStatus{
		EntityType:          entityType,
		LastSyncStartedAt:   timePtr(start),
		LastSyncCompletedAt: timePtr(time.Now()),
		Status:              model.SyncStateFailed,
		ErrorMessage:        &msg,
	})
	return EntityResult{OK: false, Error: msg, DurationMS: time.Since(start).Milliseconds()}
}

func (o *Orchestrator) resolveSince(ctx context.Context, entityType string, opts Options) (time.Time, error) {
	if opts.Since != nil {
		return *opts.Since, nil
	}
	if opts.Force {
		return time.Unix(0, 0).UTC(), nil
	}
	existing, err := o.statusRepo.Get(ctx, entityType)
	if err != nil {
		return time.Unix(0, 0).UTC(), nil
	}
	return existing.LastWatermark, nil
}

// SyncAllResult is the response shape for a bounded fan-out run.
type SyncAllResult struct {
	Success   bool                    `json:"success"`
	PerEntity map[string]EntityResult `json:"perEntity"`
}

// SyncAll runs every requested entity type with bounded concurrency across
// types (default 4) while each type's own job runs its pages serially.
func (o *Orchestrator) SyncAll(ctx context.Context, opts Options) SyncAllResult {
	entityTypes := opts.EntityTypes
	if len(entityTypes) == 0 {
		entityTypes = o.EntityTypes()
	}

	results := make(map[string]EntityResult, len(entityTypes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.cfg.MaxConcurrentEntityTypes)

	for _, entityType := range entityTypes {
		entityType := entityType
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			result := o.RunEntityType(ctx, entityType, opts)
			mu.Lock()
			results[entityType] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	success := true
	for _, r := range results {
		if !r.OK {
			success = false
			break
		}
	}
	return SyncAllResult{Success: success, PerEntity: results}
}

func timePtr(t time.Time) *time.Time { return &t }
