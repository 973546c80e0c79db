// Package repository implements the uniform data-access contract shared by
// every persisted entity: find by id/status/name/date-range, list, create,
// upsert, delete, batch-create, and watermark-style sync helpers. It is
// adapted from the teacher's infrastructure/database generic-repository
// pattern, which centered on a Supabase REST query builder; here the same
// boilerplate-reduction idea is rebuilt against parameterized sqlx/Postgres
// SQL instead of a REST query string.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/analytics-sync/backend/infrastructure/db"
	"github.com/analytics-sync/backend/infrastructure/logging"
	"github.com/analytics-sync/backend/infrastructure/resilience"
)

// Base holds the shared dependencies every concrete repository embeds.
type Base struct {
	Pool   *db.Pool
	Logger *logging.Logger
}

// NewBase constructs a Base from an open pool and logger.
func NewBase(pool *db.Pool, logger *logging.Logger) Base {
	return Base{Pool: pool, Logger: logger}
}

// withRetry runs fn, retrying with backoff+jitter when the error is
// classified as a transient database error per spec §4.3, and logs slow
// operations against the pool's configured threshold.
func (b Base) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
	}

	err := resilience.Retry(ctx, retryCfg, func() error {
		qctx, cancel := b.Pool.WithStatementTimeout(ctx)
		defer cancel()
		if err := fn(qctx); err != nil {
			if db.IsTransient(err) {
				return err
			}
			return resilience.Permanent(err)
		}
		return nil
	})

	b.Pool.LogSlowQuery(ctx, operation, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

// GenericFindByID fetches a single row by its primary key.
func GenericFindByID[T any](ctx context.Context, b Base, table string, id string) (*T, error) {
	var row T
	err := b.withRetry(ctx, fmt.Sprintf("%s.findById", table), func(qctx context.Context) error {
		query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table)
		return b.Pool.DB.GetContext(qctx, &row, query, id)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GenericFindAll lists rows with limit/offset pagination.
func GenericFindAll[T any](ctx context.Context, b Base, table string, limit, offset int) ([]T, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []T
	err := b.withRetry(ctx, fmt.Sprintf("%s.findAll", table), func(qctx context.Context) error {
		query := fmt.Sprintf("SELECT * FROM %s ORDER BY created_at DESC LIMIT $1 OFFSET $2", table)
		return b.Pool.DB.SelectContext(qctx, &rows, query, limit, offset)
	})
	return rows, err
}

// GenericFindByStatus lists rows matching a status column value.
func GenericFindByStatus[T any](ctx context.Context, b Base, table string, status string) ([]T, error) {
	var rows []T
	err := b.withRetry(ctx, fmt.Sprintf("%s.findByStatus", table), func(qctx context.Context) error {
		query := fmt.Sprintf("SELECT * FROM %s WHERE status = $1 ORDER BY updated_at DESC", table)
		return b.Pool.DB.SelectContext(qctx, &rows, query, status)
	})
	return rows, err
}

// GenericFindByNamePrefix lists rows whose name starts with prefix.
func GenericFindByNamePrefix[T any](ctx context.Context, b Base, table string, prefix string) ([]T, error) {
	var rows []T
	err := b.withRetry(ctx, fmt.Sprintf("%s.findByName", table), func(qctx context.Context) error {
		query := fmt.Sprintf("SELECT * FROM %s WHERE name ILIKE $1 ORDER BY name ASC", table)
		return b.Pool.DB.SelectContext(qctx, &rows, query, prefix+"%")
	})
	return rows, err
}

// GenericFindByDateRange lists rows whose created_at falls within [start,end].
func GenericFindByDateRange[T any](ctx context.Context, b Base, table string, start, end time.Time) ([]T, error) {
	var rows []T
	err := b.withRetry(ctx, fmt.Sprintf("%s.findByDateRange", table), func(qctx context.Context) error {
		query := fmt.Sprintf("SELECT * FROM %s WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at ASC", table)
		return b.Pool.DB.SelectContext(qctx, &rows, query, start, end)
	})
	return rows, err
}

// GenericFindUpdatedSince lists rows with updated_at strictly after since,
// the primary mechanism the sync orchestrator uses to page local state.
func GenericFindUpdatedSince[T any](ctx context.Context, b Base, table string, since time.Time, limit int) ([]T, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []T
	err := b.withRetry(ctx, fmt.Sprintf("%s.findUpdatedSince", table), func(qctx context.Context) error {
		query := fmt.Sprintf("SELECT * FROM %s WHERE updated_at > $1 ORDER BY updated_at ASC LIMIT $2", table)
		return b.Pool.DB.SelectContext(qctx, &rows, query, since, limit)
	})
	return rows, err
}

// GenericLatestUpdateTimestamp returns the max(updated_at) across table, or
// the zero time if the table is empty.
func GenericLatestUpdateTimestamp(ctx context.Context, b Base, table string) (time.Time, error) {
	var ts *time.Time
	err := b.withRetry(ctx, fmt.Sprintf("%s.getLatestUpdateTimestamp", table), func(qctx context.Context) error {
		query := fmt.Sprintf("SELECT MAX(updated_at) FROM %s", table)
		return b.Pool.DB.GetContext(qctx, &ts, query)
	})
	if err != nil {
		return time.Time{}, err
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}

// GenericDelete removes a row by id.
func GenericDelete(ctx context.Context, b Base, table string, id string) error {
	return b.withRetry(ctx, fmt.Sprintf("%s.delete", table), func(qctx context.Context) error {
		query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table)
		_, err := b.Pool.DB.ExecContext(qctx, query, id)
		return err
	})
}

// UpsertSpec describes how GenericUpsert and GenericCreateBatch build their
// INSERT ... ON CONFLICT statement for a table.
type UpsertSpec struct {
	Table      string
	Columns    []string // all columns written on insert, including id
	ConflictOn string   // conflict target, usually "id"
	Preserve   []string // columns left untouched on conflict (e.g. created_at)
}

func (s UpsertSpec) buildQuery() string {
	named := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		named[i] = ":" + c
	}

	preserve := map[string]bool{}
	for _, c := range strings.Split(s.ConflictOn, ",") {
		preserve[strings.TrimSpace(c)] = true
	}
	for _, c := range s.Preserve {
		preserve[c] = true
	}

	hasUpdatedAt := false
	var updates []string
	for _, c := range s.Columns {
		if c == "updated_at" {
			hasUpdatedAt = true
			continue
		}
		if preserve[c] {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	if hasUpdatedAt {
		updates = append(updates, "updated_at = now()")
	}

	colsCSV := joinCSV(s.Columns)
	namedCSV := joinCSV(named)
	updateCSV := joinCSV(updates)

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		s.Table, colsCSV, namedCSV, s.ConflictOn, updateCSV,
	)
}

func joinCSV(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// GenericUpsert inserts model, or on id conflict replaces every mutable
// column while preserving spec.Preserve columns (created_at) from the
// existing row, per spec §4.3's createOrUpdate contract.
func GenericUpsert[T any](ctx context.Context, b Base, spec UpsertSpec, model T) error {
	query := spec.buildQuery()
	return b.withRetry(ctx, fmt.Sprintf("%s.createOrUpdate", spec.Table), func(qctx context.Context) error {
		_, err := b.Pool.DB.NamedExecContext(qctx, query, model)
		return err
	})
}

// GenericCreateBatch upserts rows transactionally: either every row lands or
// none does. On failure it reports how many rows would have been written.
func GenericCreateBatch[T any](ctx context.Context, b Base, spec UpsertSpec, rows []T) (written int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query := spec.buildQuery()

	txErr := b.runInTx(ctx, fmt.Sprintf("%s.createBatch", spec.Table), func(tx *sqlx.Tx) error {
		written = 0
		for _, row := range rows {
			if _, execErr := tx.NamedExecContext(ctx, query, row); execErr != nil {
				return fmt.Errorf("row %d of %d: %w", written+1, len(rows), execErr)
			}
			written++
		}
		return nil
	})
	if txErr != nil {
		return 0, fmt.Errorf("createBatch %s: %d of %d rows would have been written: %w", spec.Table, written, len(rows), txErr)
	}
	return written, nil
}

// runInTx executes fn inside a transaction, rolling back on any error and on
// panic, committing only if fn returns nil.
func (b Base) runInTx(ctx context.Context, operation string, fn func(tx *sqlx.Tx) error) error {
	return b.withRetry(ctx, operation, func(qctx context.Context) error {
		tx, err := b.Pool.DB.BeginTxx(qctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
