package exam

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
)

type Exam struct {
	ID                string      `json:"id" db:"id"`
	Title             string      `json:"title" db:"title"`
	Summary           string      `json:"summary" db:"summary"`
	ExamTime          time.Time   `json:"exam_time" db:"exam_time"`
	MaterialKey       string      `json:"-" db:"material_key"`
	Material          null.String `json:"material" db:"material_name"`
	CreatorID         string      `json:"creator_id" db:"creator_id"`
	ParticipantsCount int         `json:"participants_count" db:"participants_count"`
	IsCreator         bool        `json:"is_creator" db:"-"`
	IsParticipant     bool        `json:"is_participant" db:"-"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// HasMaterial reports whether a study material was uploaded.
func (e Exam) HasMaterial() bool { return e.MaterialKey != "" }

// CanEdit reports whether the user is the creator or a participant.
func (e Exam) CanEdit(userID string) bool { return e.CreatorID == userID || e.IsParticipant }

// MaterialLink is a temporary download link to the exam material.
type MaterialLink struct {
	Name      string           `json:"name"`
	URL       string           `json:"url"`
	ExpiresAt time.Time        `json:"expires_at"`
	Info      *core.ObjectInfo `json:"info"`
}

// NewExam contains information needed to create a new Exam.
type NewExam struct {
	Title    string    `json:"title" validate:"required,notblank,max=200"`
	Summary  string    `json:"summary" validate:"required,notblank"`
	ExamTime time.Time `json:"exam_time" validate:"required"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Summary = core.CleanString(ne.Summary)
	return validate.Struct(ne)
}

// UpdateExam defines what information may be provided to modify an existing Exam.
type UpdateExam struct {
	Title    *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Summary  *string    `json:"summary" validate:"omitempty,notblank"`
	ExamTime *time.Time `json:"exam_time"`
}

func (ue *UpdateExam) Validate(validate *validator.Validate) error {
	return validate.Struct(ue)
}

func (ue UpdateExam) apply(e *Exam) {
	if ue.Title != nil {
		e.Title = core.CleanString(*ue.Title)
	}
	if ue.Summary != nil {
		e.Summary = core.CleanString(*ue.Summary)
	}
	if ue.ExamTime != nil {
		e.ExamTime = ue.ExamTime.UTC()
	}
}
