package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

// Messages
const (
	MsgJoined    = "Successfully joined the waitlist"
	MsgLeft      = "Successfully left the waitlist"
	MsgInList    = "User is in waitlist"
	MsgNotInList = "User is not in waitlist"
)

var (
	// errors
	ErrFeatureNotFound = core.NewNotFoundError("Feature not found or not active")
	ErrEntryNotFound   = core.NewNotFoundError("You are not in this waitlist")
	errInvalidFeature  = errors.New("invalid feature name")
)

type Repository interface {
	// QueryFeatures returns the active features with their waitlist counts, by name.
	QueryFeatures(ctx context.Context) ([]Feature, error)
	GetFeatureByName(ctx context.Context, name string) (Feature, error)
	// GetOrCreateFeature looks `f` up by name and creates it if missing.
	GetOrCreateFeature(ctx context.Context, f Feature) (Feature, error)
	// JoinedFeatureIDs returns the set of features the user actively waits for.
	JoinedFeatureIDs(ctx context.Context, userID string) (map[string]bool, error)

	GetEntry(ctx context.Context, userID, featureID string) (Entry, error)
	// SaveEntry inserts the entry or, when the user already has one for the feature,
	// overwrites its is_active, notes & updated_at.
	SaveEntry(ctx context.Context, e Entry) (Entry, error)
	// QueryUserEntries returns the user's active entries, latest first.
	QueryUserEntries(ctx context.Context, userID string) ([]Entry, error)
	// CountEntries returns the number of active entries of the feature.
	CountEntries(ctx context.Context, featureID string) (int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SeedDefaults get-or-creates the built-in features.
func (svc *Service) SeedDefaults(ctx context.Context) error {
	now := time.Now().UTC()
	for _, f := range SeedFeatures {
		f.ID = uuid.NewString()
		f.IsActive = true
		f.CreatedAt = now
		f.UpdatedAt = now
		if _, err := svc.repo.GetOrCreateFeature(ctx, f); err != nil {
			return errors.Wrapf(err, "seeding feature %s", f.Name)
		}
	}
	return nil
}

// Features lists the active features; `usr` is nil for anonymous requests.
func (svc *Service) Features(ctx context.Context, usr *user.User) ([]Feature, error) {
	features, err := svc.repo.QueryFeatures(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying features")
	}
	if usr == nil {
		return features, nil
	}
	joined, err := svc.repo.JoinedFeatureIDs(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying joined features")
	}
	for i := range features {
		features[i].IsUserJoined = joined[features[i].ID]
	}
	return features, nil
}

func (svc *Service) MyWaitlists(ctx context.Context, usr user.User) ([]Entry, error) {
	entries, err := svc.repo.QueryUserEntries(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	for i := range entries {
		entries[i].UserName = usr.Username
	}
	return entries, nil
}

// Join puts the user on the feature waitlist, creating the feature on first use
// and reactivating a previous entry.
func (svc *Service) Join(ctx context.Context, usr user.User, name string, jr JoinRequest) (JoinResult, error) {
	name = core.CleanString(name)
	if name == "" || len(name) > 50 {
		return JoinResult{}, core.NewValidationError(errInvalidFeature, core.FieldError{Field: "feature", Error: errInvalidFeature.Error()})
	}

	now := time.Now().UTC()
	f, err := svc.repo.GetOrCreateFeature(ctx, Feature{
		ID:          uuid.NewString(),
		Name:        name,
		DisplayName: DisplayName(name),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return JoinResult{}, errors.Wrap(err, "getting feature")
	}

	e := Entry{
		ID:        uuid.NewString(),
		UserID:    usr.ID,
		FeatureID: f.ID,
		IsActive:  true,
		Notes:     jr.Notes,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if old, err := svc.repo.GetEntry(ctx, usr.ID, f.ID); err == nil {
		if e.Notes == "" {
			e.Notes = old.Notes
		}
	} else if errors.Cause(err) != ErrEntryNotFound {
		return JoinResult{}, errors.Wrap(err, "getting entry")
	}
	if _, err = svc.repo.SaveEntry(ctx, e); err != nil {
		return JoinResult{}, errors.Wrap(err, "saving entry")
	}

	count, err := svc.repo.CountEntries(ctx, f.ID)
	if err != nil {
		return JoinResult{}, errors.Wrap(err, "counting entries")
	}
	return JoinResult{Feature: name, Joined: true, TotalCount: count}, nil
}

func (svc *Service) activeFeature(ctx context.Context, name string) (Feature, error) {
	f, err := svc.repo.GetFeatureByName(ctx, core.CleanString(name))
	if err != nil {
		return Feature{}, err
	}
	if !f.IsActive {
		return Feature{}, ErrFeatureNotFound
	}
	return f, nil
}

// Leave deactivates the user's entry, keeping it as history.
func (svc *Service) Leave(ctx context.Context, usr user.User, name string) error {
	f, err := svc.activeFeature(ctx, name)
	if err != nil {
		return err
	}
	e, err := svc.repo.GetEntry(ctx, usr.ID, f.ID)
	if err != nil {
		return err
	}
	if !e.IsActive {
		return ErrEntryNotFound
	}
	e.IsActive = false
	e.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.SaveEntry(ctx, e)
	return errors.Wrap(err, "saving entry")
}

func (svc *Service) Status(ctx context.Context, usr user.User, name string) (Status, string, error) {
	f, err := svc.activeFeature(ctx, name)
	if err != nil {
		return Status{}, "", err
	}
	count, err := svc.repo.CountEntries(ctx, f.ID)
	if err != nil {
		return Status{}, "", errors.Wrap(err, "counting entries")
	}
	st := Status{TotalCount: count}

	e, err := svc.repo.GetEntry(ctx, usr.ID, f.ID)
	if err != nil {
		if errors.Cause(err) == ErrEntryNotFound {
			return st, MsgNotInList, nil
		}
		return Status{}, "", errors.Wrap(err, "getting entry")
	}
	if !e.IsActive {
		return st, MsgNotInList, nil
	}
	e.UserName = usr.Username
	e.FeatureName = f.Name
	e.FeatureDisplayName = f.DisplayName
	st.IsJoined = true
	st.Entry = &e
	return st, MsgInList, nil
}
