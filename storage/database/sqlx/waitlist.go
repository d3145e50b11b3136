package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
)

const (
	selectFeatures = `
		SELECT f.id, f.name, f.display_name, f.description, f.is_active,
			(SELECT COUNT(*) FROM waitlist_entries e WHERE e.feature_id = f.id AND e.is_active) AS waitlist_count,
			f.created_at, f.updated_at
		FROM waitlist_features f`
	selectEntries = `
		SELECT e.id, e.user_id, e.feature_id, f.name AS feature_name, f.display_name AS feature_display_name,
			e.is_active, e.priority, e.notes, e.joined_at, e.updated_at
		FROM waitlist_entries e
		JOIN waitlist_features f ON f.id = e.feature_id`
)

type waitlistRepository struct {
	db core.DB
}

var _ waitlist.Repository = (*waitlistRepository)(nil) // interface compliance check

func NewWaitlistRepository(db core.DB) waitlist.Repository {
	return &waitlistRepository{db: db}
}

func (repo waitlistRepository) QueryFeatures(ctx context.Context) ([]waitlist.Feature, error) {
	features := make([]waitlist.Feature, 0)
	err := repo.db.SelectContext(ctx, &features, selectFeatures+` WHERE f.is_active ORDER BY f.name`)
	return features, errors.Wrap(err, "selecting features")
}

func (repo waitlistRepository) GetFeatureByName(ctx context.Context, name string) (waitlist.Feature, error) {
	var f waitlist.Feature
	if err := repo.db.GetContext(ctx, &f, selectFeatures+` WHERE f.name = $1`, name); err != nil {
		return waitlist.Feature{}, trapNoRowsErr(err, waitlist.ErrFeatureNotFound, "selecting feature")
	}
	return f, nil
}

func (repo waitlistRepository) GetOrCreateFeature(ctx context.Context, f waitlist.Feature) (waitlist.Feature, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO waitlist_features (id, name, display_name, description, is_active, created_at, updated_at)
		VALUES (:id, :name, :display_name, :description, :is_active, :created_at, :updated_at)
		ON CONFLICT (name) DO NOTHING`, f)
	if err != nil {
		return waitlist.Feature{}, errors.Wrap(err, "inserting feature")
	}
	return repo.GetFeatureByName(ctx, f.Name)
}

func (repo waitlistRepository) JoinedFeatureIDs(ctx context.Context, userID string) (map[string]bool, error) {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids, `SELECT feature_id FROM waitlist_entries WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting joined features")
	}
	res := make(map[string]bool, len(ids))
	for _, id := range ids {
		res[id] = true
	}
	return res, nil
}

func (repo waitlistRepository) GetEntry(ctx context.Context, userID, featureID string) (waitlist.Entry, error) {
	var e waitlist.Entry
	err := repo.db.GetContext(ctx, &e, selectEntries+` WHERE e.user_id = $1 AND e.feature_id = $2`, userID, featureID)
	if err != nil {
		return waitlist.Entry{}, trapNoRowsErr(err, waitlist.ErrEntryNotFound, "selecting entry")
	}
	return e, nil
}

func (repo waitlistRepository) SaveEntry(ctx context.Context, e waitlist.Entry) (waitlist.Entry, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO waitlist_entries (id, user_id, feature_id, is_active, priority, notes, joined_at, updated_at)
		VALUES (:id, :user_id, :feature_id, :is_active, :priority, :notes, :joined_at, :updated_at)
		ON CONFLICT (user_id, feature_id) DO UPDATE SET
			is_active = EXCLUDED.is_active, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`, e)
	if err != nil {
		return waitlist.Entry{}, errors.Wrap(err, "saving entry")
	}
	return repo.GetEntry(ctx, e.UserID, e.FeatureID)
}

func (repo waitlistRepository) QueryUserEntries(ctx context.Context, userID string) ([]waitlist.Entry, error) {
	entries := make([]waitlist.Entry, 0)
	err := repo.db.SelectContext(ctx, &entries, selectEntries+` WHERE e.user_id = $1 AND e.is_active ORDER BY e.joined_at DESC`, userID)
	return entries, errors.Wrap(err, "selecting entries")
}

func (repo waitlistRepository) CountEntries(ctx context.Context, featureID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM waitlist_entries WHERE feature_id = $1 AND is_active`, featureID)
	return n, errors.Wrap(err, "counting entries")
}
