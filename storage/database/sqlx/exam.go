package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/exam"
)

const selectExams = `
	SELECT e.id, e.title, e.summary, e.exam_time, e.material_key, e.material_name, e.creator_id,
		(SELECT COUNT(*) FROM exam_participants p WHERE p.exam_id = e.id) AS participants_count,
		e.created_at, e.updated_at
	FROM exams e`

type examRepository struct {
	db core.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db core.DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO exams (id, title, summary, exam_time, material_key, material_name, creator_id, created_at, updated_at)
		VALUES (:id, :title, :summary, :exam_time, :material_key, :material_name, :creator_id, :created_at, :updated_at)`, e)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	e.ParticipantsCount = 0
	return e, nil
}

func (repo examRepository) QueryExams(ctx context.Context) ([]exam.Exam, error) {
	exams := make([]exam.Exam, 0)
	err := repo.db.SelectContext(ctx, &exams, selectExams+` ORDER BY e.created_at DESC`)
	return exams, errors.Wrap(err, "selecting exams")
}

func (repo examRepository) GetExamByID(ctx context.Context, id string) (exam.Exam, error) {
	var e exam.Exam
	if err := repo.db.GetContext(ctx, &e, selectExams+` WHERE e.id = $1`, id); err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "selecting exam")
	}
	return e, nil
}

func (repo examRepository) UpdateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE exams SET
			title = :title, summary = :summary, exam_time = :exam_time, material_key = :material_key,
			material_name = :material_name, updated_at = :updated_at
		WHERE id = :id`, e)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "updating exam")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return exam.Exam{}, exam.ErrNotFound
	}
	return e, nil
}

func (repo examRepository) DeleteExam(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo examRepository) AddParticipant(ctx context.Context, examID, userID string, joinedAt time.Time) error {
	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO exam_participants (exam_id, user_id, joined_at) VALUES ($1, $2, $3)
		ON CONFLICT (exam_id, user_id) DO NOTHING`, examID, userID, joinedAt)
	if err != nil {
		return errors.Wrap(err, "inserting participant")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return exam.ErrAlreadyJoined
	}
	return nil
}

func (repo examRepository) RemoveParticipant(ctx context.Context, examID, userID string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM exam_participants WHERE exam_id = $1 AND user_id = $2`, examID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting participant")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return exam.ErrNotParticipant
	}
	return nil
}

func (repo examRepository) ParticipatingExamIDs(ctx context.Context, userID string) (map[string]bool, error) {
	var ids []string
	if err := repo.db.SelectContext(ctx, &ids, `SELECT exam_id FROM exam_participants WHERE user_id = $1`, userID); err != nil {
		return nil, errors.Wrap(err, "selecting participations")
	}
	res := make(map[string]bool, len(ids))
	for _, id := range ids {
		res[id] = true
	}
	return res, nil
}
