package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/goal"
)

const (
	selectGoals = `
		SELECT g.id, g.user_id, g.title, g.description, g.category_id, g.status_id, g.visibility, g.target_date,
			g.progress, g.created_at, g.updated_at,
			c.name AS cat_name, c.name_en AS cat_name_en, c.created_at AS cat_created_at,
			s.name AS st_name, s.name_en AS st_name_en, s.created_at AS st_created_at
		FROM goals g
		LEFT JOIN goal_categories c ON c.id = g.category_id
		LEFT JOIN goal_statuses s ON s.id = g.status_id`
	suggestionColumns = `id, goal_id, title, description, priority, accepted, completed, created_at, updated_at`
)

// goalRow is a goal joined with its category and status.
type goalRow struct {
	goal.Goal
	CatName      null.String `db:"cat_name"`
	CatNameEn    null.String `db:"cat_name_en"`
	CatCreatedAt null.Time   `db:"cat_created_at"`
	StName       null.String `db:"st_name"`
	StNameEn     null.String `db:"st_name_en"`
	StCreatedAt  null.Time   `db:"st_created_at"`
}

func (r goalRow) goal() goal.Goal {
	g := r.Goal
	if g.CategoryID.Valid && r.CatName.Valid {
		g.Category = &goal.Category{ID: g.CategoryID.String, Name: r.CatName.String, NameEn: r.CatNameEn.String, CreatedAt: r.CatCreatedAt.Time}
	}
	if g.StatusID.Valid && r.StName.Valid {
		g.Status = &goal.Status{ID: g.StatusID.String, Name: r.StName.String, NameEn: r.StNameEn.String, CreatedAt: r.StCreatedAt.Time}
	}
	return g
}

type goalRepository struct {
	db core.DB
}

var _ goal.Repository = (*goalRepository)(nil) // interface compliance check

func NewGoalRepository(db core.DB) goal.Repository {
	return &goalRepository{db: db}
}

// Categories & statuses

func (repo goalRepository) QueryCategories(ctx context.Context) ([]goal.Category, error) {
	cats := make([]goal.Category, 0)
	err := repo.db.SelectContext(ctx, &cats, `SELECT id, name, name_en, created_at FROM goal_categories ORDER BY name`)
	return cats, errors.Wrap(err, "selecting categories")
}

func (repo goalRepository) GetCategoryByID(ctx context.Context, id string) (goal.Category, error) {
	var c goal.Category
	if err := repo.db.GetContext(ctx, &c, `SELECT id, name, name_en, created_at FROM goal_categories WHERE id = $1`, id); err != nil {
		return goal.Category{}, trapNoRowsErr(err, goal.ErrCategoryNotFound, "selecting category")
	}
	return c, nil
}

func (repo goalRepository) CreateCategory(ctx context.Context, c goal.Category) (goal.Category, error) {
	_, err := repo.db.ExecContext(ctx, `INSERT INTO goal_categories (id, name, name_en, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.NameEn, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return goal.Category{}, goal.ErrCategoryExists
		}
		return goal.Category{}, errors.Wrap(err, "inserting category")
	}
	return c, nil
}

func (repo goalRepository) GetOrCreateCategory(ctx context.Context, c goal.Category) (goal.Category, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO goal_categories (id, name, name_en, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name_en) DO NOTHING`, c.ID, c.Name, c.NameEn, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return goal.Category{}, goal.ErrCategoryExists
		}
		return goal.Category{}, errors.Wrap(err, "inserting category")
	}
	var saved goal.Category
	err = repo.db.GetContext(ctx, &saved, `SELECT id, name, name_en, created_at FROM goal_categories WHERE name_en = $1`, c.NameEn)
	return saved, errors.Wrap(err, "selecting category")
}

func (repo goalRepository) QueryStatuses(ctx context.Context) ([]goal.Status, error) {
	sts := make([]goal.Status, 0)
	err := repo.db.SelectContext(ctx, &sts, `SELECT id, name, name_en, created_at FROM goal_statuses ORDER BY name`)
	return sts, errors.Wrap(err, "selecting statuses")
}

func (repo goalRepository) GetStatusByID(ctx context.Context, id string) (goal.Status, error) {
	var s goal.Status
	if err := repo.db.GetContext(ctx, &s, `SELECT id, name, name_en, created_at FROM goal_statuses WHERE id = $1`, id); err != nil {
		return goal.Status{}, trapNoRowsErr(err, goal.ErrStatusNotFound, "selecting status")
	}
	return s, nil
}

func (repo goalRepository) CreateStatus(ctx context.Context, s goal.Status) (goal.Status, error) {
	_, err := repo.db.ExecContext(ctx, `INSERT INTO goal_statuses (id, name, name_en, created_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.Name, s.NameEn, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return goal.Status{}, goal.ErrStatusExists
		}
		return goal.Status{}, errors.Wrap(err, "inserting status")
	}
	return s, nil
}

func (repo goalRepository) GetOrCreateStatus(ctx context.Context, s goal.Status) (goal.Status, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO goal_statuses (id, name, name_en, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name_en) DO NOTHING`, s.ID, s.Name, s.NameEn, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return goal.Status{}, goal.ErrStatusExists
		}
		return goal.Status{}, errors.Wrap(err, "inserting status")
	}
	var saved goal.Status
	err = repo.db.GetContext(ctx, &saved, `SELECT id, name, name_en, created_at FROM goal_statuses WHERE name_en = $1`, s.NameEn)
	return saved, errors.Wrap(err, "selecting status")
}

// Goals

func (repo goalRepository) selectGoals(ctx context.Context, query string, args ...interface{}) ([]goal.Goal, error) {
	var rows []goalRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting goals")
	}
	goals := make([]goal.Goal, 0, len(rows))
	for _, r := range rows {
		goals = append(goals, r.goal())
	}
	return goals, nil
}

// QueryGoals expects `ordering` fields to be whitelisted by the caller.
func (repo goalRepository) QueryGoals(ctx context.Context, userID string, filter goal.Filter, ordering []core.DBOrdering) ([]goal.Goal, error) {
	where := []string{"g.user_id = ?"}
	args := []interface{}{userID}
	if filter.StatusID != "" {
		where = append(where, "g.status_id = ?")
		args = append(args, filter.StatusID)
	}
	if filter.CategoryID != "" {
		where = append(where, "g.category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.Visibility != "" {
		where = append(where, "g.visibility = ?")
		args = append(args, filter.Visibility)
	}

	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		ord.Field = "g." + ord.Field
		orderBy = append(orderBy, ord.String())
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, "g.created_at DESC")
	}
	query := selectGoals + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + strings.Join(orderBy, ", ")
	return repo.selectGoals(ctx, repo.db.Rebind(query), args...)
}

func (repo goalRepository) QueryPublicGoals(ctx context.Context) ([]goal.Goal, error) {
	return repo.selectGoals(ctx, selectGoals+` WHERE g.visibility = $1 ORDER BY g.created_at DESC`, goal.VisibilityPublic)
}

func (repo goalRepository) GetGoalByID(ctx context.Context, id string) (goal.Goal, error) {
	var r goalRow
	if err := repo.db.GetContext(ctx, &r, selectGoals+` WHERE g.id = $1`, id); err != nil {
		return goal.Goal{}, trapNoRowsErr(err, goal.ErrNotFound, "selecting goal")
	}
	return r.goal(), nil
}

func (repo goalRepository) CreateGoal(ctx context.Context, g goal.Goal) (goal.Goal, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO goals (id, user_id, title, description, category_id, status_id, visibility, target_date, progress,
			created_at, updated_at)
		VALUES (:id, :user_id, :title, :description, :category_id, :status_id, :visibility, :target_date, :progress,
			:created_at, :updated_at)`, g)
	if err != nil {
		return goal.Goal{}, errors.Wrap(err, "inserting goal")
	}
	return repo.GetGoalByID(ctx, g.ID)
}

func (repo goalRepository) UpdateGoal(ctx context.Context, g goal.Goal) (goal.Goal, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE goals SET
			title = :title, description = :description, category_id = :category_id, status_id = :status_id,
			visibility = :visibility, target_date = :target_date, progress = :progress, updated_at = :updated_at
		WHERE id = :id`, g)
	if err != nil {
		return goal.Goal{}, errors.Wrap(err, "updating goal")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goal.Goal{}, goal.ErrNotFound
	}
	return repo.GetGoalByID(ctx, g.ID)
}

func (repo goalRepository) DeleteGoal(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting goal")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goal.ErrNotFound
	}
	return nil
}

func (repo goalRepository) GoalStatistics(ctx context.Context, userID string) (goal.Statistics, error) {
	var stats goal.Statistics
	err := repo.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE s.name_en = $2) AS active,
			COUNT(*) FILTER (WHERE s.name_en = $3) AS completed,
			COUNT(*) FILTER (WHERE s.name_en = $4) AS paused,
			COUNT(*) FILTER (WHERE g.visibility = $5) AS public,
			COUNT(*) FILTER (WHERE g.visibility <> $5) AS private
		FROM goals g
		LEFT JOIN goal_statuses s ON s.id = g.status_id
		WHERE g.user_id = $1`,
		userID, goal.StatusActive, goal.StatusCompleted, goal.StatusPaused, goal.VisibilityPublic)
	return stats, errors.Wrap(err, "computing goal statistics")
}

// Suggestions

func (repo goalRepository) QuerySuggestions(ctx context.Context, goalID string) ([]goal.Suggestion, error) {
	sgs := make([]goal.Suggestion, 0)
	err := repo.db.SelectContext(ctx, &sgs,
		`SELECT `+suggestionColumns+` FROM goal_suggestions WHERE goal_id = $1 ORDER BY created_at`, goalID)
	return sgs, errors.Wrap(err, "selecting suggestions")
}

func (repo goalRepository) ReplaceSuggestions(ctx context.Context, goalID string, sgs []goal.Suggestion) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM goal_suggestions WHERE goal_id = $1`, goalID); err != nil {
			return errors.Wrap(err, "deleting suggestions")
		}
		if len(sgs) == 0 {
			return nil
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO goal_suggestions (`+suggestionColumns+`)
			VALUES (:id, :goal_id, :title, :description, :priority, :accepted, :completed, :created_at, :updated_at)`, sgs)
		return errors.Wrap(err, "inserting suggestions")
	})
}

func (repo goalRepository) GetSuggestionByID(ctx context.Context, id string) (goal.Suggestion, error) {
	var s goal.Suggestion
	if err := repo.db.GetContext(ctx, &s, `SELECT `+suggestionColumns+` FROM goal_suggestions WHERE id = $1`, id); err != nil {
		return goal.Suggestion{}, trapNoRowsErr(err, goal.ErrSuggestionNotFound, "selecting suggestion")
	}
	return s, nil
}

func (repo goalRepository) UpdateSuggestion(ctx context.Context, s goal.Suggestion) (goal.Suggestion, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE goal_suggestions SET accepted = $1, completed = $2, updated_at = $3 WHERE id = $4`,
		s.Accepted, s.Completed, s.UpdatedAt, s.ID)
	if err != nil {
		return goal.Suggestion{}, errors.Wrap(err, "updating suggestion")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goal.Suggestion{}, goal.ErrSuggestionNotFound
	}
	return s, nil
}

