package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/aaronlou/innergrow.ai/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) load(e exam.Exam) exam.Exam {
	e.ParticipantsCount = 0
	for m := range repo.db.participants {
		if m.targetID == e.ID {
			e.ParticipantsCount++
		}
	}
	e.IsCreator, e.IsParticipant = false, false
	return e
}

func (repo *examRepository) CreateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.exams[e.ID] = &e
	return repo.load(e), nil
}

func (repo *examRepository) QueryExams(_ context.Context) ([]exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	exams := make([]exam.Exam, 0, len(repo.db.exams))
	for _, e := range repo.db.exams {
		exams = append(exams, repo.load(*e))
	}
	sort.SliceStable(exams, func(i, j int) bool { return exams[i].CreatedAt.After(exams[j].CreatedAt) })
	return exams, nil
}

func (repo *examRepository) GetExamByID(_ context.Context, id string) (exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	e, ok := repo.db.exams[id]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	return repo.load(*e), nil
}

func (repo *examRepository) UpdateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.exams[e.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	e.CreatorID = old.CreatorID
	e.CreatedAt = old.CreatedAt
	repo.db.exams[e.ID] = &e
	return repo.load(e), nil
}

func (repo *examRepository) DeleteExam(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.exams[id]; !ok {
		return exam.ErrNotFound
	}
	delete(repo.db.exams, id)
	for m := range repo.db.participants {
		if m.targetID == id {
			delete(repo.db.participants, m)
		}
	}
	for rID, r := range repo.db.rooms {
		if r.ExamID == id {
			repo.db.deleteRoom(rID)
		}
	}
	return nil
}

func (repo *examRepository) AddParticipant(_ context.Context, examID, userID string, joinedAt time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.exams[examID]; !ok {
		return exam.ErrNotFound
	}
	m := membership{examID, userID}
	if _, ok := repo.db.participants[m]; ok {
		return exam.ErrAlreadyJoined
	}
	repo.db.participants[m] = joinedAt
	return nil
}

func (repo *examRepository) RemoveParticipant(_ context.Context, examID, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m := membership{examID, userID}
	if _, ok := repo.db.participants[m]; !ok {
		return exam.ErrNotParticipant
	}
	delete(repo.db.participants, m)
	return nil
}

func (repo *examRepository) ParticipatingExamIDs(_ context.Context, userID string) (map[string]bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make(map[string]bool)
	for m := range repo.db.participants {
		if m.userID == userID {
			ids[m.targetID] = true
		}
	}
	return ids, nil
}
