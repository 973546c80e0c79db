package repository

import (
	"context"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

// RawAPIResponseRepository retains raw upstream payloads for debugging,
// bounded to a retention window (spec: 30 days) enforced by Prune.
type RawAPIResponseRepository struct{ Base }

func NewRawAPIResponseRepository(base Base) *RawAPIResponseRepository {
	return &RawAPIResponseRepository{base}
}

func (r *RawAPIResponseRepository) Create(ctx context.Context, row model.RawAPIResponse) error {
	return r.withRetry(ctx, "raw_api_responses.create", func(qctx context.Context) error {
		query := `INSERT INTO raw_api_responses (id, endpoint, payload_blob, received_at, api_version)
			VALUES (:id, :endpoint, :payload_blob, :received_at, :api_version)
			ON CONFLICT (id) DO NOTHING`
		_, err := r.Pool.DB.NamedExecContext(qctx, query, row)
		return err
	})
}

// Prune deletes payloads received before cutoff, enforcing the retention
// window.
func (r *RawAPIResponseRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := r.withRetry(ctx, "raw_api_responses.prune", func(qctx context.Context) error {
		result, err := r.Pool.DB.ExecContext(qctx, "DELETE FROM raw_api_responses WHERE received_at < $1", cutoff)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}
