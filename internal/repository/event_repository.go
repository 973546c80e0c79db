package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

const eventsTable = "events"

var eventUpsertSpec = UpsertSpec{
	Table: eventsTable,
	Columns: []string{
		"id", "metric_id", "profile_id", "timestamp", "value",
		"properties_blob", "raw_blob", "synced_at",
	},
	ConflictOn: "id",
	Preserve:   []string{},
}

// EventRepository persists the append-only Event entity.
type EventRepository struct{ Base }

func NewEventRepository(base Base) *EventRepository { return &EventRepository{base} }

func (r *EventRepository) FindByID(ctx context.Context, id string) (*model.Event, error) {
	return GenericFindByID[model.Event](ctx, r.Base, eventsTable, id)
}

func (r *EventRepository) FindAll(ctx context.Context, limit, offset int) ([]model.Event, error) {
	return GenericFindAll[model.Event](ctx, r.Base, eventsTable, limit, offset)
}

func (r *EventRepository) FindUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Event, error) {
	var rows []model.Event
	err := r.withRetry(ctx, "events.findUpdatedSince", func(qctx context.Context) error {
		if limit <= 0 {
			limit = 500
		}
		query := "SELECT * FROM events WHERE synced_at > $1 ORDER BY synced_at ASC LIMIT $2"
		return r.Pool.DB.SelectContext(qctx, &rows, query, since, limit)
	})
	return rows, err
}

// GetLatestUpdateTimestamp reports the newest event timestamp observed,
// used as the sync watermark source for the events entity type.
func (r *EventRepository) GetLatestUpdateTimestamp(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := r.withRetry(ctx, "events.getLatestUpdateTimestamp", func(qctx context.Context) error {
		return r.Pool.DB.GetContext(qctx, &ts, "SELECT MAX(timestamp) FROM events")
	})
	if err != nil {
		return time.Time{}, err
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}

func (r *EventRepository) FindByMetricID(ctx context.Context, metricID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []model.Event
	err := r.withRetry(ctx, "events.findByMetricId", func(qctx context.Context) error {
		query := "SELECT * FROM events WHERE metric_id = $1 ORDER BY timestamp DESC LIMIT $2"
		return r.Pool.DB.SelectContext(qctx, &rows, query, metricID, limit)
	})
	return rows, err
}

func (r *EventRepository) FindByProfileID(ctx context.Context, profileID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []model.Event
	err := r.withRetry(ctx, "events.findByProfileId", func(qctx context.Context) error {
		query := "SELECT * FROM events WHERE profile_id = $1 ORDER BY timestamp DESC LIMIT $2"
		return r.Pool.DB.SelectContext(qctx, &rows, query, profileID, limit)
	})
	return rows, err
}

// FindByTimeRange lists events in [start,end], optionally narrowed to a
// single metric.
func (r *EventRepository) FindByTimeRange(ctx context.Context, start, end time.Time, metricID string) ([]model.Event, error) {
	var rows []model.Event
	err := r.withRetry(ctx, "events.findByTimeRange", func(qctx context.Context) error {
		if metricID == "" {
			query := "SELECT * FROM events WHERE timestamp BETWEEN $1 AND $2 ORDER BY timestamp ASC"
			return r.Pool.DB.SelectContext(qctx, &rows, query, start, end)
		}
		query := "SELECT * FROM events WHERE metric_id = $1 AND timestamp BETWEEN $2 AND $3 ORDER BY timestamp ASC"
		return r.Pool.DB.SelectContext(qctx, &rows, query, metricID, start, end)
	})
	return rows, err
}

func (r *EventRepository) GetCountByMetricID(ctx context.Context, metricID string, start, end time.Time) (int64, error) {
	var count int64
	err := r.withRetry(ctx, "events.getCountByMetricId", func(qctx context.Context) error {
		query := "SELECT COUNT(*) FROM events WHERE metric_id = $1 AND timestamp BETWEEN $2 AND $3"
		return r.Pool.DB.GetContext(qctx, &count, query, metricID, start, end)
	})
	return count, err
}

// GetSumByMetricID sums the event value column, treating a null value as 1
// per the time-series aggregation rule (an occurrence with no magnitude
// still counts as one unit).
func (r *EventRepository) GetSumByMetricID(ctx context.Context, metricID string, start, end time.Time) (model.Decimal, error) {
	var sum string
	err := r.withRetry(ctx, "events.getSumByMetricId", func(qctx context.Context) error {
		query := `SELECT COALESCE(SUM(COALESCE(value::numeric, 1)), 0)::text FROM events
			WHERE metric_id = $1 AND timestamp BETWEEN $2 AND $3`
		return r.Pool.DB.GetContext(qctx, &sum, query, metricID, start, end)
	})
	if err != nil {
		return model.Decimal{}, fmt.Errorf("events.getSumByMetricId: %w", err)
	}
	return model.ParseDecimal(sum)
}

func (r *EventRepository) Create(ctx context.Context, e model.Event) error {
	return GenericUpsert(ctx, r.Base, eventUpsertSpec, e)
}

func (r *EventRepository) CreateBatch(ctx context.Context, rows []model.Event) (int, error) {
	return GenericCreateBatch(ctx, r.Base, eventUpsertSpec, rows)
}
