package inmemdb

import (
	"context"
	"sort"

	"github.com/aaronlou/innergrow.ai/core/waitlist"
)

type waitlistRepository struct {
	db *DB
}

var _ waitlist.Repository = (*waitlistRepository)(nil) // interface compliance check

func NewWaitlistRepository(db *DB) waitlist.Repository {
	return &waitlistRepository{db: db}
}

func (repo *waitlistRepository) count(featureID string) int {
	n := 0
	for _, e := range repo.db.entries {
		if e.FeatureID == featureID && e.IsActive {
			n++
		}
	}
	return n
}

func (repo *waitlistRepository) QueryFeatures(_ context.Context) ([]waitlist.Feature, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	features := make([]waitlist.Feature, 0)
	for _, f := range repo.db.features {
		if f.IsActive {
			feat := *f
			feat.WaitlistCount = repo.count(f.ID)
			features = append(features, feat)
		}
	}
	sort.SliceStable(features, func(i, j int) bool { return features[i].Name < features[j].Name })
	return features, nil
}

func (repo *waitlistRepository) byName(name string) *waitlist.Feature {
	for _, f := range repo.db.features {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (repo *waitlistRepository) GetFeatureByName(_ context.Context, name string) (waitlist.Feature, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	f := repo.byName(name)
	if f == nil {
		return waitlist.Feature{}, waitlist.ErrFeatureNotFound
	}
	feat := *f
	feat.WaitlistCount = repo.count(f.ID)
	return feat, nil
}

func (repo *waitlistRepository) GetOrCreateFeature(_ context.Context, f waitlist.Feature) (waitlist.Feature, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if old := repo.byName(f.Name); old != nil {
		feat := *old
		feat.WaitlistCount = repo.count(old.ID)
		return feat, nil
	}
	repo.db.features[f.ID] = &f
	return f, nil
}

func (repo *waitlistRepository) JoinedFeatureIDs(_ context.Context, userID string) (map[string]bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make(map[string]bool)
	for _, e := range repo.db.entries {
		if e.UserID == userID && e.IsActive {
			ids[e.FeatureID] = true
		}
	}
	return ids, nil
}

func (repo *waitlistRepository) find(userID, featureID string) *waitlist.Entry {
	for _, e := range repo.db.entries {
		if e.UserID == userID && e.FeatureID == featureID {
			return e
		}
	}
	return nil
}

// load fills the feature columns of the entry.
func (repo *waitlistRepository) load(e waitlist.Entry) waitlist.Entry {
	if f, ok := repo.db.features[e.FeatureID]; ok {
		e.FeatureName = f.Name
		e.FeatureDisplayName = f.DisplayName
	}
	return e
}

func (repo *waitlistRepository) GetEntry(_ context.Context, userID, featureID string) (waitlist.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e := repo.find(userID, featureID); e != nil {
		return repo.load(*e), nil
	}
	return waitlist.Entry{}, waitlist.ErrEntryNotFound
}

func (repo *waitlistRepository) SaveEntry(_ context.Context, e waitlist.Entry) (waitlist.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.features[e.FeatureID]; !ok {
		return waitlist.Entry{}, waitlist.ErrFeatureNotFound
	}
	if old := repo.find(e.UserID, e.FeatureID); old != nil {
		old.IsActive = e.IsActive
		old.Notes = e.Notes
		old.UpdatedAt = e.UpdatedAt
		return repo.load(*old), nil
	}
	repo.db.entries[e.ID] = &e
	return repo.load(e), nil
}

func (repo *waitlistRepository) QueryUserEntries(_ context.Context, userID string) ([]waitlist.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]waitlist.Entry, 0)
	for _, e := range repo.db.entries {
		if e.UserID == userID && e.IsActive {
			entries = append(entries, repo.load(*e))
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].JoinedAt.After(entries[j].JoinedAt) })
	return entries, nil
}

func (repo *waitlistRepository) CountEntries(_ context.Context, featureID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.count(featureID), nil
}
