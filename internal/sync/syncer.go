package sync

import (
	"context"
	"time"

	"github.com/analytics-sync/backend/infrastructure/logging"
	"github.com/analytics-sync/backend/internal/jsonapi"
	"github.com/analytics-sync/backend/internal/upstream"
)

// BatchCreator is satisfied by every repository's CreateBatch method,
// regardless of the concrete entity type it operates on.
type BatchCreator[T any] interface {
	CreateBatch(ctx context.Context, rows []T) (int, error)
}

// Transform converts one decoded upstream resource into a row plus the
// timestamp that should advance the entity type's watermark, or ok=false to
// skip a resource the transform can't use.
type Transform[T any] func(r jsonapi.Resource) (row T, updatedAt time.Time, ok bool)

// EntitySyncer is the uniform job contract each entity type implements:
// page the upstream client since a watermark and commit rows in batches.
type EntitySyncer interface {
	EntityType() string
	// Sync pages the upstream endpoint for resources updated after since,
	// writing committed batches as it goes. It returns the total rows
	// written and the maximum updated-at observed across committed rows
	// only -- a batch that fails to commit must not advance the watermark
	// past the last batch that did commit.
	Sync(ctx context.Context, since time.Time) (recordCount int, watermark time.Time, err error)
}

// GenericEntitySyncer implements EntitySyncer for any entity whose upstream
// representation can be decoded with a single Transform and whose
// repository exposes CreateBatch.
type GenericEntitySyncer[T any] struct {
	entityType string
	path       string
	batchSize  int
	client     *upstream.Client
	repo       BatchCreator[T]
	transform  Transform[T]
	logger     *logging.Logger
}

func NewGenericEntitySyncer[T any](
	entityType, path string,
	client *upstream.Client,
	repo BatchCreator[T],
	transform Transform[T],
	logger *logging.Logger,
) *GenericEntitySyncer[T] {
	return &GenericEntitySyncer[T]{
		entityType: entityType,
		path:       path,
		batchSize:  50,
		client:     client,
		repo:       repo,
		transform:  transform,
		logger:     logger,
	}
}

func (s *GenericEntitySyncer[T]) EntityType() string { return s.entityType }

// clockSkewMargin keeps the sync window from requesting resources updated
// in the last minute, which may not yet be consistently visible upstream.
const clockSkewMargin = time.Minute

func (s *GenericEntitySyncer[T]) Sync(ctx context.Context, since time.Time) (int, time.Time, error) {
	cutoff := time.Now().Add(-clockSkewMargin)
	params := jsonapi.Params{
		Filters: []jsonapi.Filter{
			{Op: jsonapi.OpGreaterOrEqual, Field: "updated", Value: since},
			{Op: jsonapi.OpLessOrEqual, Field: "updated", Value: cutoff},
		},
		Sort: []string{"updated"},
		Page: jsonapi.PageSelector{Size: s.batchSize},
	}

	var (
		total               int
		committedWatermark  = since
		pendingBatch        = make([]T, 0, s.batchSize)
		pendingMaxUpdatedAt = since
	)

	// flush commits the pending batch and only then advances
	// committedWatermark, so a batch that fails to write never moves the
	// watermark past the last one that actually landed.
	flush := func() error {
		if len(pendingBatch) == 0 {
			return nil
		}
		written, err := s.repo.CreateBatch(ctx, pendingBatch)
		if err != nil {
			pendingBatch = pendingBatch[:0]
			return err
		}
		total += written
		if pendingMaxUpdatedAt.After(committedWatermark) {
			committedWatermark = pendingMaxUpdatedAt
		}
		pendingBatch = pendingBatch[:0]
		return nil
	}

	err := s.client.GetPaginated(ctx, s.path, params, func(page jsonapi.Page) error {
		for _, res := range page.Data {
			row, updatedAt, ok := s.transform(res)
			if !ok {
				continue
			}
			pendingBatch = append(pendingBatch, row)
			if updatedAt.After(pendingMaxUpdatedAt) {
				pendingMaxUpdatedAt = updatedAt
			}
			if len(pendingBatch) >= s.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return total, committedWatermark, err
	}

	if err := flush(); err != nil {
		return total, committedWatermark, err
	}

	return total, committedWatermark, nil
}
