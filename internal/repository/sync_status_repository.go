package repository

import (
	"context"
	"fmt"

	"github.com/analytics-sync/backend/internal/model"
)

var syncStatusUpsertSpec = UpsertSpec{
	Table: "sync_status",
	Columns: []string{
		"entity_type", "last_sync_started_at", "last_sync_completed_at",
		"last_watermark", "status", "record_count", "error_message",
	},
	ConflictOn: "entity_type",
	Preserve:   []string{},
}

// SyncStatusRepository persists the per-entity-type sync bookkeeping row.
type SyncStatusRepository struct{ Base }

func NewSyncStatusRepository(base Base) *SyncStatusRepository { return &SyncStatusRepository{base} }

func (r *SyncStatusRepository) Get(ctx context.Context, entityType string) (*model.SyncStatus, error) {
	var row model.SyncStatus
	err := r.withRetry(ctx, "sync_status.get", func(qctx context.Context) error {
		return r.Pool.DB.GetContext(qctx, &row, "SELECT * FROM sync_status WHERE entity_type = $1", entityType)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *SyncStatusRepository) ListAll(ctx context.Context) ([]model.SyncStatus, error) {
	var rows []model.SyncStatus
	err := r.withRetry(ctx, "sync_status.listAll", func(qctx context.Context) error {
		return r.Pool.DB.SelectContext(qctx, &rows, "SELECT * FROM sync_status ORDER BY entity_type ASC")
	})
	return rows, err
}

// Upsert persists the current state of a sync job for its entity type.
func (r *SyncStatusRepository) Upsert(ctx context.Context, s model.SyncStatus) error {
	query := syncStatusUpsertSpec.buildQuery()
	return r.withRetry(ctx, "sync_status.upsert", func(qctx context.Context) error {
		_, err := r.Pool.DB.NamedExecContext(qctx, query, s)
		if err != nil {
			return fmt.Errorf("sync_status upsert: %w", err)
		}
		return nil
	})
}
