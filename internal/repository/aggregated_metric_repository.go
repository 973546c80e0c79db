package repository

import (
	"context"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

const aggregatedMetricsTable = "aggregated_metrics"

var aggregatedMetricUpsertSpec = UpsertSpec{
	Table: aggregatedMetricsTable,
	Columns: []string{
		"metric_id", "bucket_start", "bucket_size",
		"count", "sum_value", "min_value", "max_value", "avg_value",
	},
	ConflictOn: "metric_id, bucket_start, bucket_size",
	Preserve:   []string{},
}

// AggregatedMetricRepository persists precomputed per-bucket rollups.
type AggregatedMetricRepository struct{ Base }

func NewAggregatedMetricRepository(base Base) *AggregatedMetricRepository {
	return &AggregatedMetricRepository{base}
}

// StoreAggregatedMetrics upserts a batch of buckets for a metric, replacing
// any bucket already computed for the same (metricId, bucketStart,
// bucketSize) key.
func (r *AggregatedMetricRepository) StoreAggregatedMetrics(ctx context.Context, rows []model.AggregatedMetric) (int, error) {
	return GenericCreateBatch(ctx, r.Base, aggregatedMetricUpsertSpec, rows)
}

// GetStoredAggregatedMetrics returns buckets of bucketSize covering
// [start,end] for a metric, ordered by bucket start.
func (r *AggregatedMetricRepository) GetStoredAggregatedMetrics(ctx context.Context, metricID, bucketSize string, start, end time.Time) ([]model.AggregatedMetric, error) {
	var rows []model.AggregatedMetric
	err := r.withRetry(ctx, "aggregated_metrics.getStoredAggregatedMetrics", func(qctx context.Context) error {
		query := `SELECT * FROM aggregated_metrics
			WHERE metric_id = $1 AND bucket_size = $2 AND bucket_start BETWEEN $3 AND $4
			ORDER BY bucket_start ASC`
		return r.Pool.DB.SelectContext(qctx, &rows, query, metricID, bucketSize, start, end)
	})
	return rows, err
}
