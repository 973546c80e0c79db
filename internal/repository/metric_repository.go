package repository

import (
	"context"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

const metricsTable = "metrics"

var metricUpsertSpec = UpsertSpec{
	Table: metricsTable,
	Columns: []string{
		"id", "name", "type", "description",
		"integration_id", "integration_name", "integration_category",
		"metadata_blob", "created_at", "updated_at", "synced_at",
	},
	ConflictOn: "id",
	Preserve:   []string{"created_at"},
}

// MetricRepository persists the Metric entity.
type MetricRepository struct{ Base }

func NewMetricRepository(base Base) *MetricRepository { return &MetricRepository{base} }

func (r *MetricRepository) FindByID(ctx context.Context, id string) (*model.Metric, error) {
	return GenericFindByID[model.Metric](ctx, r.Base, metricsTable, id)
}

func (r *MetricRepository) FindByNamePrefix(ctx context.Context, prefix string) ([]model.Metric, error) {
	return GenericFindByNamePrefix[model.Metric](ctx, r.Base, metricsTable, prefix)
}

func (r *MetricRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Metric, error) {
	return GenericFindByDateRange[model.Metric](ctx, r.Base, metricsTable, start, end)
}

func (r *MetricRepository) FindAll(ctx context.Context, limit, offset int) ([]model.Metric, error) {
	return GenericFindAll[model.Metric](ctx, r.Base, metricsTable, limit, offset)
}

func (r *MetricRepository) FindUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Metric, error) {
	return GenericFindUpdatedSince[model.Metric](ctx, r.Base, metricsTable, since, limit)
}

func (r *MetricRepository) GetLatestUpdateTimestamp(ctx context.Context) (time.Time, error) {
	return GenericLatestUpdateTimestamp(ctx, r.Base, metricsTable)
}

func (r *MetricRepository) Create(ctx context.Context, m model.Metric) error {
	return GenericUpsert(ctx, r.Base, metricUpsertSpec, m)
}

func (r *MetricRepository) CreateOrUpdate(ctx context.Context, m model.Metric) error {
	return GenericUpsert(ctx, r.Base, metricUpsertSpec, m)
}

func (r *MetricRepository) CreateBatch(ctx context.Context, rows []model.Metric) (int, error) {
	return GenericCreateBatch(ctx, r.Base, metricUpsertSpec, rows)
}

func (r *MetricRepository) Delete(ctx context.Context, id string) error {
	return GenericDelete(ctx, r.Base, metricsTable, id)
}
