package repository

import (
	"context"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

var counterColumns = []string{
	"id", "name", "status",
	"sent_count", "open_count", "click_count", "conversion_count", "revenue",
	"metadata_blob", "created_at", "updated_at", "synced_at",
}

// counterEntityRepository implements the shared repository contract for
// Campaign, Flow, Form, and Segment, which are structurally identical aside
// from their table name (each embeds model.EntityCounters).
type counterEntityRepository[T any] struct {
	Base
	table string
	spec  UpsertSpec
}

func newCounterEntityRepository[T any](base Base, table string) counterEntityRepository[T] {
	return counterEntityRepository[T]{
		Base:  base,
		table: table,
		spec: UpsertSpec{
			Table:      table,
			Columns:    counterColumns,
			ConflictOn: "id",
			Preserve:   []string{"created_at"},
		},
	}
}

func (r counterEntityRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return GenericFindByID[T](ctx, r.Base, r.table, id)
}

func (r counterEntityRepository[T]) FindByStatus(ctx context.Context, status string) ([]T, error) {
	return GenericFindByStatus[T](ctx, r.Base, r.table, status)
}

func (r counterEntityRepository[T]) FindByNamePrefix(ctx context.Context, prefix string) ([]T, error) {
	return GenericFindByNamePrefix[T](ctx, r.Base, r.table, prefix)
}

func (r counterEntityRepository[T]) FindByDateRange(ctx context.Context, start, end time.Time) ([]T, error) {
	return GenericFindByDateRange[T](ctx, r.Base, r.table, start, end)
}

func (r counterEntityRepository[T]) FindAll(ctx context.Context, limit, offset int) ([]T, error) {
	return GenericFindAll[T](ctx, r.Base, r.table, limit, offset)
}

func (r counterEntityRepository[T]) FindUpdatedSince(ctx context.Context, since time.Time, limit int) ([]T, error) {
	return GenericFindUpdatedSince[T](ctx, r.Base, r.table, since, limit)
}

func (r counterEntityRepository[T]) GetLatestUpdateTimestamp(ctx context.Context) (time.Time, error) {
	return GenericLatestUpdateTimestamp(ctx, r.Base, r.table)
}

func (r counterEntityRepository[T]) Create(ctx context.Context, m T) error {
	return GenericUpsert(ctx, r.Base, r.spec, m)
}

func (r counterEntityRepository[T]) CreateOrUpdate(ctx context.Context, m T) error {
	return GenericUpsert(ctx, r.Base, r.spec, m)
}

func (r counterEntityRepository[T]) CreateBatch(ctx context.Context, rows []T) (int, error) {
	return GenericCreateBatch(ctx, r.Base, r.spec, rows)
}

func (r counterEntityRepository[T]) Delete(ctx context.Context, id string) error {
	return GenericDelete(ctx, r.Base, r.table, id)
}

// CampaignRepository persists the Campaign entity.
type CampaignRepository struct{ counterEntityRepository[model.Campaign] }

func NewCampaignRepository(base Base) *CampaignRepository {
	return &CampaignRepository{newCounterEntityRepository[model.Campaign](base, "campaigns")}
}

// FlowRepository persists the Flow entity.
type FlowRepository struct{ counterEntityRepository[model.Flow] }

func NewFlowRepository(base Base) *FlowRepository {
	return &FlowRepository{newCounterEntityRepository[model.Flow](base, "flows")}
}

// FormRepository persists the Form entity.
type FormRepository struct{ counterEntityRepository[model.Form] }

func NewFormRepository(base Base) *FormRepository {
	return &FormRepository{newCounterEntityRepository[model.Form](base, "forms")}
}

// SegmentRepository persists the Segment entity.
type SegmentRepository struct{ counterEntityRepository[model.Segment] }

func NewSegmentRepository(base Base) *SegmentRepository {
	return &SegmentRepository{newCounterEntityRepository[model.Segment](base, "segments")}
}
