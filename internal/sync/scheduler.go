package sync

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/analytics-sync/backend/infrastructure/logging"
)

// cadence pairs an entity type with the standard 5-field cron expression it
// runs on, per spec §4.4.
var cadences = map[string]string{
	"metrics":  "0 1 * * *",  // daily 01:00 local
	"events":   "0 * * * *",  // hourly
	"campaigns": "0 */3 * * *", // every 3h
	"flows":    "0 */6 * * *", // every 6h
	"forms":    "0 */6 * * *", // every 6h
	"segments": "0 */6 * * *", // every 6h
	"profiles": "0 2 * * *",  // daily 02:00 local
}

// Scheduler drives the Orchestrator on the cadences above using
// robfig/cron/v3, and exposes TriggerNow for on-demand HTTP-triggered runs.
type Scheduler struct {
	orchestrator *Orchestrator
	cron         *cron.Cron
	logger       *logging.Logger
}

func NewScheduler(orchestrator *Orchestrator, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		cron:         cron.New(),
		logger:       logger,
	}
}

// Start registers every known cadence and begins the cron loop. Only
// entity types the orchestrator actually has a registered syncer for are
// scheduled.
func (s *Scheduler) Start(ctx context.Context) error {
	for entityType, spec := range cadences {
		if _, ok := s.orchestrator.syncers[entityType]; !ok {
			continue
		}
		entityType := entityType
		_, err := s.cron.AddFunc(spec, func() {
			result := s.orchestrator.RunEntityType(ctx, entityType, Options{})
			if !result.OK && s.logger != nil {
				s.logger.WithContext(ctx).WithFields(map[string]interface{}{
					"entity_type": entityType,
					"error":       result.Error,
				}).Warn("scheduled sync failed")
			}
		})
		if err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for any in-flight job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// TriggerNow runs a single entity type immediately, outside its cadence,
// for the sync HTTP endpoints.
func (s *Scheduler) TriggerNow(ctx context.Context, entityType string, opts Options) EntityResult {
	return s.orchestrator.RunEntityType(ctx, entityType, opts)
}

// TriggerAll runs every registered entity type immediately via SyncAll.
func (s *Scheduler) TriggerAll(ctx context.Context, opts Options) SyncAllResult {
	return s.orchestrator.SyncAll(ctx, opts)
}
