package goal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("goal not found")
	ErrCategoryNotFound   = core.NewNotFoundError("category not found")
	ErrStatusNotFound     = core.NewNotFoundError("status not found")
	ErrSuggestionNotFound = core.NewNotFoundError("suggestion not found")
	ErrCategoryExists     = errors.New("a category with this name already exists")
	ErrStatusExists       = errors.New("a status with this name already exists")
	errCategoryNotExist   = errors.New("the given category does not exist")
	errStatusNotExist     = errors.New("the given status does not exist")
)

type (
	Repository interface {
		QueryCategories(ctx context.Context) ([]Category, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		// CreateCategory returns ErrCategoryExists when name or name_en is taken.
		CreateCategory(ctx context.Context, c Category) (Category, error)
		// GetOrCreateCategory looks `c` up by name_en and creates it if missing.
		GetOrCreateCategory(ctx context.Context, c Category) (Category, error)
		QueryStatuses(ctx context.Context) ([]Status, error)
		GetStatusByID(ctx context.Context, id string) (Status, error)
		// CreateStatus returns ErrStatusExists when name or name_en is taken.
		CreateStatus(ctx context.Context, s Status) (Status, error)
		GetOrCreateStatus(ctx context.Context, s Status) (Status, error)

		// QueryGoals returns the user's goals with their category and status loaded.
		QueryGoals(ctx context.Context, userID string, filter Filter, ordering []core.DBOrdering) ([]Goal, error)
		// QueryPublicGoals returns every public goal, newest first.
		QueryPublicGoals(ctx context.Context) ([]Goal, error)
		GetGoalByID(ctx context.Context, id string) (Goal, error)
		CreateGoal(ctx context.Context, g Goal) (Goal, error)
		UpdateGoal(ctx context.Context, g Goal) (Goal, error)
		DeleteGoal(ctx context.Context, id string) error
		GoalStatistics(ctx context.Context, userID string) (Statistics, error)

		// QuerySuggestions returns the goal suggestions in generation order.
		QuerySuggestions(ctx context.Context, goalID string) ([]Suggestion, error)
		// ReplaceSuggestions atomically swaps the goal suggestions for `sgs`.
		ReplaceSuggestions(ctx context.Context, goalID string, sgs []Suggestion) error
		GetSuggestionByID(ctx context.Context, id string) (Suggestion, error)
		UpdateSuggestion(ctx context.Context, s Suggestion) (Suggestion, error)
	}

	UserFinder interface {
		GetManyByID(ctx context.Context, ids ...string) (map[string]user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserFinder
		ai      *ai.Service
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, users UserFinder, aiSvc *ai.Service) *Service {
	return &Service{repo: repo, users: users, ai: aiSvc, nowFunc: time.Now}
}

// Categories & statuses

func (svc *Service) Categories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryCategories(ctx)
}

func (svc *Service) Statuses(ctx context.Context) ([]Status, error) {
	return svc.repo.QueryStatuses(ctx)
}

func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	c, err := svc.repo.CreateCategory(ctx, Category{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		NameEn:    nc.NameEn,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Cause(err) == ErrCategoryExists {
		return Category{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return c, err
}

func (svc *Service) CreateStatus(ctx context.Context, nc NewCategory) (Status, error) {
	s, err := svc.repo.CreateStatus(ctx, Status{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		NameEn:    nc.NameEn,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Cause(err) == ErrStatusExists {
		return Status{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return s, err
}

// SeedDefaults get-or-creates the built-in categories and statuses.
func (svc *Service) SeedDefaults(ctx context.Context) error {
	for _, c := range SeedCategories {
		if _, err := svc.defaultCategory(ctx, c); err != nil {
			return err
		}
	}
	for _, s := range SeedStatuses {
		if _, err := svc.defaultStatus(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (svc *Service) defaultCategory(ctx context.Context, c Category) (Category, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	c, err := svc.repo.GetOrCreateCategory(ctx, c)
	return c, errors.Wrap(err, "getting default category")
}

func (svc *Service) defaultStatus(ctx context.Context, s Status) (Status, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	s, err := svc.repo.GetOrCreateStatus(ctx, s)
	return s, errors.Wrap(err, "getting default status")
}

// resolveCategory returns the referenced category, or `def` when none is referenced.
func (svc *Service) resolveCategory(ctx context.Context, id *string, def *Category) (*Category, error) {
	if id == nil || core.CleanString(*id) == "" {
		if def == nil {
			return nil, nil
		}
		c, err := svc.defaultCategory(ctx, *def)
		return &c, err
	}
	invalid := core.NewValidationError(errCategoryNotExist, core.FieldError{Field: "category_id", Error: errCategoryNotExist.Error()})
	cid := core.CleanString(*id)
	if _, err := uuid.Parse(cid); err != nil {
		return nil, invalid
	}
	c, err := svc.repo.GetCategoryByID(ctx, cid)
	if err != nil {
		if errors.Cause(err) == ErrCategoryNotFound {
			return nil, invalid
		}
		return nil, err
	}
	return &c, nil
}

func (svc *Service) resolveStatus(ctx context.Context, id *string, def *Status) (*Status, error) {
	if id == nil || core.CleanString(*id) == "" {
		if def == nil {
			return nil, nil
		}
		s, err := svc.defaultStatus(ctx, *def)
		return &s, err
	}
	invalid := core.NewValidationError(errStatusNotExist, core.FieldError{Field: "status_id", Error: errStatusNotExist.Error()})
	sid := core.CleanString(*id)
	if _, err := uuid.Parse(sid); err != nil {
		return nil, invalid
	}
	s, err := svc.repo.GetStatusByID(ctx, sid)
	if err != nil {
		if errors.Cause(err) == ErrStatusNotFound {
			return nil, invalid
		}
		return nil, err
	}
	return &s, nil
}

// Goals

func (svc *Service) detail(g Goal) Detail {
	return Detail{Goal: g, IsOverdue: g.IsOverdue(svc.nowFunc())}
}

func (svc *Service) details(goals []Goal) []Detail {
	res := make([]Detail, 0, len(goals))
	for _, g := range goals {
		res = append(res, svc.detail(g))
	}
	return res
}

// List returns the user's goals. Filters that cannot match yield an empty list
// and unknown ordering fields are ignored.
func (svc *Service) List(ctx context.Context, usr user.User, filter Filter, ordering []core.DBOrdering) ([]Detail, error) {
	filter.StatusID = core.CleanString(filter.StatusID)
	filter.CategoryID = core.CleanString(filter.CategoryID)
	filter.Visibility = core.CleanString(filter.Visibility)
	for _, id := range []string{filter.StatusID, filter.CategoryID} {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return []Detail{}, nil
		}
	}

	var ords []core.DBOrdering
	for _, ord := range ordering {
		if OrderingFields[ord.Field] {
			ords = append(ords, ord)
		}
	}

	goals, err := svc.repo.QueryGoals(ctx, usr.ID, filter, ords)
	if err != nil {
		return nil, errors.Wrap(err, "querying goals")
	}
	return svc.details(goals), nil
}

// Get returns one of the user's own goals; others' goals are not found.
func (svc *Service) Get(ctx context.Context, usr user.User, id string) (Goal, error) {
	g, err := svc.repo.GetGoalByID(ctx, id)
	if err != nil {
		return Goal{}, err
	}
	if g.UserID != usr.ID {
		return Goal{}, ErrNotFound
	}
	return g, nil
}

func (svc *Service) Detail(ctx context.Context, usr user.User, id string) (Detail, error) {
	g, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Detail{}, err
	}
	return svc.detail(g), nil
}

// Create adds a goal; a missing category or status falls back to the defaults.
func (svc *Service) Create(ctx context.Context, usr user.User, ng NewGoal) (Detail, error) {
	cat, err := svc.resolveCategory(ctx, ng.CategoryID, &DefaultCategory)
	if err != nil {
		return Detail{}, err
	}
	st, err := svc.resolveStatus(ctx, ng.StatusID, &DefaultStatus)
	if err != nil {
		return Detail{}, err
	}

	now := time.Now().UTC()
	g := Goal{
		ID:          uuid.NewString(),
		UserID:      usr.ID,
		Title:       ng.Title,
		Description: ng.Description,
		CategoryID:  null.StringFrom(cat.ID),
		StatusID:    null.StringFrom(st.ID),
		Visibility:  ng.Visibility,
		TargetDate:  ng.TargetDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err = svc.repo.CreateGoal(ctx, g); err != nil {
		return Detail{}, err
	}
	return svc.Detail(ctx, usr, g.ID)
}

func (svc *Service) Update(ctx context.Context, usr user.User, g Goal, ug UpdateGoal) (Detail, error) {
	cat, err := svc.resolveCategory(ctx, ug.CategoryID, nil)
	if err != nil {
		return Detail{}, err
	}
	st, err := svc.resolveStatus(ctx, ug.StatusID, nil)
	if err != nil {
		return Detail{}, err
	}
	if cat != nil {
		g.CategoryID = null.StringFrom(cat.ID)
	}
	if st != nil {
		g.StatusID = null.StringFrom(st.ID)
	}
	ug.apply(&g)
	g.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateGoal(ctx, g); err != nil {
		return Detail{}, err
	}
	return svc.Detail(ctx, usr, g.ID)
}

func (svc *Service) Delete(ctx context.Context, g Goal) error {
	return svc.repo.DeleteGoal(ctx, g.ID)
}

// Complete moves the goal to the completed status with full progress.
func (svc *Service) Complete(ctx context.Context, usr user.User, g Goal) (Detail, error) {
	st, err := svc.defaultStatus(ctx, CompletedStatus)
	if err != nil {
		return Detail{}, err
	}
	g.StatusID = null.StringFrom(st.ID)
	g.Progress = 100
	g.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateGoal(ctx, g); err != nil {
		return Detail{}, err
	}
	return svc.Detail(ctx, usr, g.ID)
}

func (svc *Service) Statistics(ctx context.Context, usr user.User) (Statistics, error) {
	stats, err := svc.repo.GoalStatistics(ctx, usr.ID)
	return stats, errors.Wrap(err, "computing goal statistics")
}

func (svc *Service) publics(ctx context.Context, goals []Goal) ([]Public, error) {
	ids := make([]string, 0, len(goals))
	for _, g := range goals {
		ids = append(ids, g.UserID)
	}
	owners, err := svc.users.GetManyByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "finding goal owners")
	}
	res := make([]Public, 0, len(goals))
	for _, g := range goals {
		owner := owners[g.UserID]
		res = append(res, Public{
			ID:          g.ID,
			Title:       g.Title,
			Description: g.Description,
			Category:    g.Category,
			Status:      g.Status,
			Progress:    g.Progress,
			TargetDate:  g.TargetDate,
			CreatedAt:   g.CreatedAt,
			User:        owner.Summary(),
		})
	}
	return res, nil
}

func (svc *Service) PublicGoals(ctx context.Context) ([]Public, error) {
	goals, err := svc.repo.QueryPublicGoals(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying public goals")
	}
	return svc.publics(ctx, goals)
}

// PublicGoal returns a public goal; private goals are not found.
func (svc *Service) PublicGoal(ctx context.Context, id string) (Public, error) {
	g, err := svc.repo.GetGoalByID(ctx, id)
	if err != nil {
		return Public{}, err
	}
	if g.Visibility != VisibilityPublic {
		return Public{}, ErrNotFound
	}
	res, err := svc.publics(ctx, []Goal{g})
	if err != nil {
		return Public{}, err
	}
	return res[0], nil
}

// Suggestions

// Analyze asks the AI service for suggestions and replaces the existing ones.
func (svc *Service) Analyze(ctx context.Context, g Goal, req ai.Request) ([]Suggestion, error) {
	items, err := svc.ai.GoalSuggestions(ctx, g.Title, g.Description, req)
	if err != nil {
		return nil, err
	}

	// generation order is kept through created_at
	now := time.Now().UTC()
	sgs := make([]Suggestion, 0, len(items))
	for i, it := range items {
		ts := now.Add(time.Duration(i) * time.Millisecond)
		sgs = append(sgs, Suggestion{
			ID:          uuid.NewString(),
			GoalID:      g.ID,
			Title:       it.Title,
			Description: it.Description,
			Priority:    it.Priority,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		})
	}
	if err = svc.repo.ReplaceSuggestions(ctx, g.ID, sgs); err != nil {
		return nil, errors.Wrap(err, "saving suggestions")
	}
	return sgs, nil
}

func (svc *Service) Suggestions(ctx context.Context, g Goal) ([]Suggestion, error) {
	sgs, err := svc.repo.QuerySuggestions(ctx, g.ID)
	return sgs, errors.Wrap(err, "querying suggestions")
}

func (svc *Service) AcceptSuggestion(ctx context.Context, g Goal, suggestionID string, as AcceptSuggestion) (Suggestion, error) {
	s, err := svc.repo.GetSuggestionByID(ctx, suggestionID)
	if err != nil {
		return Suggestion{}, err
	}
	if s.GoalID != g.ID {
		return Suggestion{}, ErrSuggestionNotFound
	}
	s.Accepted = *as.Accepted
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSuggestion(ctx, s)
}
