package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/goal"
)

type goalRepository struct {
	db *DB
}

var _ goal.Repository = (*goalRepository)(nil) // interface compliance check

func NewGoalRepository(db *DB) goal.Repository {
	return &goalRepository{db: db}
}

// Categories & statuses

func (repo *goalRepository) QueryCategories(_ context.Context) ([]goal.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cats := make([]goal.Category, 0, len(repo.db.categories))
	for _, c := range repo.db.categories {
		cats = append(cats, *c)
	}
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *goalRepository) GetCategoryByID(_ context.Context, id string) (goal.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.categories[id]; ok {
		return *c, nil
	}
	return goal.Category{}, goal.ErrCategoryNotFound
}

func (repo *goalRepository) categoryTaken(c goal.Category) *goal.Category {
	for _, cat := range repo.db.categories {
		if cat.Name == c.Name || cat.NameEn == c.NameEn {
			return cat
		}
	}
	return nil
}

func (repo *goalRepository) CreateCategory(_ context.Context, c goal.Category) (goal.Category, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.categoryTaken(c) != nil {
		return goal.Category{}, goal.ErrCategoryExists
	}
	repo.db.categories[c.ID] = &c
	return c, nil
}

func (repo *goalRepository) GetOrCreateCategory(_ context.Context, c goal.Category) (goal.Category, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, cat := range repo.db.categories {
		if cat.NameEn == c.NameEn {
			return *cat, nil
		}
	}
	if repo.categoryTaken(c) != nil {
		return goal.Category{}, goal.ErrCategoryExists
	}
	repo.db.categories[c.ID] = &c
	return c, nil
}

func (repo *goalRepository) QueryStatuses(_ context.Context) ([]goal.Status, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sts := make([]goal.Status, 0, len(repo.db.statuses))
	for _, s := range repo.db.statuses {
		sts = append(sts, *s)
	}
	sort.SliceStable(sts, func(i, j int) bool { return sts[i].Name < sts[j].Name })
	return sts, nil
}

func (repo *goalRepository) GetStatusByID(_ context.Context, id string) (goal.Status, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.statuses[id]; ok {
		return *s, nil
	}
	return goal.Status{}, goal.ErrStatusNotFound
}

func (repo *goalRepository) statusTaken(s goal.Status) bool {
	for _, st := range repo.db.statuses {
		if st.Name == s.Name || st.NameEn == s.NameEn {
			return true
		}
	}
	return false
}

func (repo *goalRepository) CreateStatus(_ context.Context, s goal.Status) (goal.Status, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.statusTaken(s) {
		return goal.Status{}, goal.ErrStatusExists
	}
	repo.db.statuses[s.ID] = &s
	return s, nil
}

func (repo *goalRepository) GetOrCreateStatus(_ context.Context, s goal.Status) (goal.Status, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, st := range repo.db.statuses {
		if st.NameEn == s.NameEn {
			return *st, nil
		}
	}
	if repo.statusTaken(s) {
		return goal.Status{}, goal.ErrStatusExists
	}
	repo.db.statuses[s.ID] = &s
	return s, nil
}

// Goals

// load resolves the category and the status of the goal.
func (repo *goalRepository) load(g goal.Goal) goal.Goal {
	g.Category, g.Status = nil, nil
	if g.CategoryID.Valid {
		if c, ok := repo.db.categories[g.CategoryID.String]; ok {
			cat := *c
			g.Category = &cat
		}
	}
	if g.StatusID.Valid {
		if s, ok := repo.db.statuses[g.StatusID.String]; ok {
			st := *s
			g.Status = &st
		}
	}
	return g
}

func compareGoals(a, b goal.Goal, field string) int {
	switch field {
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	case "target_date":
		switch {
		case a.TargetDate.Valid && b.TargetDate.Valid:
			return compareTimes(a.TargetDate.Time.Time, b.TargetDate.Time.Time)
		case a.TargetDate.Valid:
			return -1
		case b.TargetDate.Valid:
			return 1
		}
		return 0
	case "progress":
		return a.Progress - b.Progress
	case "title":
		return strings.Compare(a.Title, b.Title)
	default:
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
}

func (repo *goalRepository) QueryGoals(_ context.Context, userID string, filter goal.Filter, ordering []core.DBOrdering) ([]goal.Goal, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	goals := make([]goal.Goal, 0)
	for _, g := range repo.db.goals {
		if g.UserID != userID {
			continue
		}
		if filter.StatusID != "" && g.StatusID.String != filter.StatusID {
			continue
		}
		if filter.CategoryID != "" && g.CategoryID.String != filter.CategoryID {
			continue
		}
		if filter.Visibility != "" && g.Visibility != filter.Visibility {
			continue
		}
		goals = append(goals, repo.load(*g))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(goals, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareGoals(goals[i], goals[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return goals, nil
}

func (repo *goalRepository) QueryPublicGoals(_ context.Context) ([]goal.Goal, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	goals := make([]goal.Goal, 0)
	for _, g := range repo.db.goals {
		if g.Visibility == goal.VisibilityPublic {
			goals = append(goals, repo.load(*g))
		}
	}
	sort.SliceStable(goals, func(i, j int) bool { return goals[i].CreatedAt.After(goals[j].CreatedAt) })
	return goals, nil
}

func (repo *goalRepository) GetGoalByID(_ context.Context, id string) (goal.Goal, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.goals[id]; ok {
		return repo.load(*g), nil
	}
	return goal.Goal{}, goal.ErrNotFound
}

func (repo *goalRepository) CreateGoal(_ context.Context, g goal.Goal) (goal.Goal, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	g.Category, g.Status = nil, nil
	repo.db.goals[g.ID] = &g
	return repo.load(g), nil
}

func (repo *goalRepository) UpdateGoal(_ context.Context, g goal.Goal) (goal.Goal, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.goals[g.ID]
	if !ok {
		return goal.Goal{}, goal.ErrNotFound
	}
	g.UserID = old.UserID
	g.CreatedAt = old.CreatedAt
	g.Category, g.Status = nil, nil
	repo.db.goals[g.ID] = &g
	return repo.load(g), nil
}

func (repo *goalRepository) DeleteGoal(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.goals[id]; !ok {
		return goal.ErrNotFound
	}
	delete(repo.db.goals, id)
	for sID, s := range repo.db.suggestions {
		if s.GoalID == id {
			delete(repo.db.suggestions, sID)
		}
	}
	return nil
}

func (repo *goalRepository) GoalStatistics(_ context.Context, userID string) (goal.Statistics, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var stats goal.Statistics
	for _, g := range repo.db.goals {
		if g.UserID != userID {
			continue
		}
		g := repo.load(*g)
		stats.Total++
		if g.Status != nil {
			switch g.Status.NameEn {
			case goal.StatusActive:
				stats.Active++
			case goal.StatusCompleted:
				stats.Completed++
			case goal.StatusPaused:
				stats.Paused++
			}
		}
		if g.Visibility == goal.VisibilityPublic {
			stats.Public++
		} else {
			stats.Private++
		}
	}
	return stats, nil
}

// Suggestions

func (repo *goalRepository) QuerySuggestions(_ context.Context, goalID string) ([]goal.Suggestion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sgs := make([]goal.Suggestion, 0)
	for _, s := range repo.db.suggestions {
		if s.GoalID == goalID {
			sgs = append(sgs, *s)
		}
	}
	sort.SliceStable(sgs, func(i, j int) bool { return sgs[i].CreatedAt.Before(sgs[j].CreatedAt) })
	return sgs, nil
}

func (repo *goalRepository) ReplaceSuggestions(_ context.Context, goalID string, sgs []goal.Suggestion) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.goals[goalID]; !ok {
		return goal.ErrNotFound
	}
	for sID, s := range repo.db.suggestions {
		if s.GoalID == goalID {
			delete(repo.db.suggestions, sID)
		}
	}
	for i := range sgs {
		s := sgs[i]
		repo.db.suggestions[s.ID] = &s
	}
	return nil
}

func (repo *goalRepository) GetSuggestionByID(_ context.Context, id string) (goal.Suggestion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.suggestions[id]; ok {
		return *s, nil
	}
	return goal.Suggestion{}, goal.ErrSuggestionNotFound
}

func (repo *goalRepository) UpdateSuggestion(_ context.Context, s goal.Suggestion) (goal.Suggestion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.suggestions[s.ID]; !ok {
		return goal.Suggestion{}, goal.ErrSuggestionNotFound
	}
	repo.db.suggestions[s.ID] = &s
	return s, nil
}
