package repository

import (
	"context"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

const profilesTable = "profiles"

var profileUpsertSpec = UpsertSpec{
	Table: profilesTable,
	Columns: []string{
		"id", "email", "phone", "external_id", "first_name", "last_name",
		"properties_blob", "last_event_at", "created_at", "updated_at", "synced_at",
	},
	ConflictOn: "id",
	Preserve:   []string{"created_at"},
}

// ProfileRepository persists the Profile entity.
type ProfileRepository struct{ Base }

func NewProfileRepository(base Base) *ProfileRepository { return &ProfileRepository{base} }

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	return GenericFindByID[model.Profile](ctx, r.Base, profilesTable, id)
}

func (r *ProfileRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Profile, error) {
	return GenericFindByDateRange[model.Profile](ctx, r.Base, profilesTable, start, end)
}

func (r *ProfileRepository) FindAll(ctx context.Context, limit, offset int) ([]model.Profile, error) {
	return GenericFindAll[model.Profile](ctx, r.Base, profilesTable, limit, offset)
}

func (r *ProfileRepository) FindUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Profile, error) {
	return GenericFindUpdatedSince[model.Profile](ctx, r.Base, profilesTable, since, limit)
}

func (r *ProfileRepository) GetLatestUpdateTimestamp(ctx context.Context) (time.Time, error) {
	return GenericLatestUpdateTimestamp(ctx, r.Base, profilesTable)
}

// FindByExternalID looks a profile up by the upstream's opaque external id.
func (r *ProfileRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Profile, error) {
	var row model.Profile
	err := r.withRetry(ctx, "profiles.findByExternalId", func(qctx context.Context) error {
		return r.Pool.DB.GetContext(qctx, &row, "SELECT * FROM profiles WHERE external_id = $1 LIMIT 1", externalID)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *ProfileRepository) Create(ctx context.Context, p model.Profile) error {
	return GenericUpsert(ctx, r.Base, profileUpsertSpec, p)
}

func (r *ProfileRepository) CreateOrUpdate(ctx context.Context, p model.Profile) error {
	return GenericUpsert(ctx, r.Base, profileUpsertSpec, p)
}

func (r *ProfileRepository) CreateBatch(ctx context.Context, rows []model.Profile) (int, error) {
	return GenericCreateBatch(ctx, r.Base, profileUpsertSpec, rows)
}

func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	return GenericDelete(ctx, r.Base, profilesTable, id)
}
