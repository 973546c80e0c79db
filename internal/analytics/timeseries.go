package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/analytics-sync/backend/infrastructure/errors"
	"github.com/analytics-sync/backend/internal/model"
)

// AggregatedMetricSource reads pre-computed bucket rows, when available, so
// GetTimeSeries can avoid scanning raw events for common interval/range
// combinations.
type AggregatedMetricSource interface {
	GetStoredAggregatedMetrics(ctx context.Context, metricID, bucketSize string, start, end time.Time) ([]model.AggregatedMetric, error)
}

// EventSource reads raw events for on-the-fly bucketing when no aggregated
// rows cover the requested range.
type EventSource interface {
	FindByTimeRange(ctx context.Context, start, end time.Time, metricID string) ([]model.Event, error)
}

// Engine answers time-series, decomposition, and forecasting-input queries
// against the aggregated and raw event stores.
type Engine struct {
	aggregates AggregatedMetricSource
	events     EventSource
}

func NewEngine(aggregates AggregatedMetricSource, events EventSource) *Engine {
	return &Engine{aggregates: aggregates, events: events}
}

// supportedBucketSizes maps a bucket size name to its duration, for
// on-the-fly grouping when no aggregated rows exist.
var supportedBucketSizes = map[string]time.Duration{
	"hour":  time.Hour,
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// GetTimeSeries returns one point per bucket in [start,end] for metricID at
// the given interval. It prefers pre-aggregated rows and falls back to
// summing raw events per bucket when aggregates don't cover the range.
func (e *Engine) GetTimeSeries(ctx context.Context, metricID string, start, end time.Time, interval string) ([]model.TimeSeriesPoint, error) {
	if metricID == "" {
		return nil, errors.InvalidInput("metricId", "Invalid metric ID")
	}
	if !start.Before(end) {
		return nil, errors.InvalidInput("dateRange", "Invalid date range")
	}

	step, ok := supportedBucketSizes[interval]
	if !ok {
		return nil, fmt.Errorf("analytics: unsupported interval %q", interval)
	}

	rows, err := e.aggregates.GetStoredAggregatedMetrics(ctx, metricID, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("analytics: load aggregates: %w", err)
	}

	expectedBuckets := int(end.Sub(start)/step) + 1
	if len(rows) >= expectedBuckets {
		points := make([]model.TimeSeriesPoint, len(rows))
		for i, r := range rows {
			points[i] = model.TimeSeriesPoint{Timestamp: r.BucketStart, Value: r.SumValue.Float64()}
		}
		return points, nil
	}

	events, err := e.events.FindByTimeRange(ctx, start, end, metricID)
	if err != nil {
		return nil, fmt.Errorf("analytics: load events: %w", err)
	}

	return bucketEvents(events, start, end, step), nil
}

// bucketEvents sums event values (treating an empty value as one occurrence)
// into fixed-width buckets covering [start,end].
func bucketEvents(events []model.Event, start, end time.Time, step time.Duration) []model.TimeSeriesPoint {
	nBuckets := int(end.Sub(start)/step) + 1
	sums := make([]float64, nBuckets)

	for _, ev := range events {
		offset := ev.Timestamp.Sub(start)
		if offset < 0 {
			continue
		}
		idx := int(offset / step)
		if idx >= nBuckets {
			continue
		}
		value := 1.0
		if ev.Value != nil {
			value = ev.Value.Float64()
		}
		sums[idx] += value
	}

	points := make([]model.TimeSeriesPoint, nBuckets)
	for i := range points {
		points[i] = model.TimeSeriesPoint{Timestamp: start.Add(time.Duration(i) * step), Value: sums[i]}
	}
	return points
}
