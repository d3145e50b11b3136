package waitlist

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aaronlou/innergrow.ai/core"
)

// Features known at startup.
var SeedFeatures = []Feature{
	{Name: "mockExams", DisplayName: "Mock Exams", Description: "Timed mock exams built from past papers"},
	{Name: "flashcards", DisplayName: "Flashcards", Description: "Spaced-repetition flashcards"},
	{Name: "quickQuizzes", DisplayName: "Quick Quizzes", Description: "Short quizzes to check your progress"},
}

type Feature struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	Description   string    `json:"description" db:"description"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	WaitlistCount int       `json:"waitlist_count" db:"waitlist_count"`
	IsUserJoined  bool      `json:"is_user_joined" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Entry struct {
	ID                 string    `json:"id" db:"id"`
	UserID             string    `json:"user_id" db:"user_id"`
	UserName           string    `json:"user_name" db:"-"`
	FeatureID          string    `json:"-" db:"feature_id"`
	FeatureName        string    `json:"feature_name" db:"feature_name"`
	FeatureDisplayName string    `json:"feature_display_name" db:"feature_display_name"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	Priority           int       `json:"priority" db:"priority"`
	Notes              string    `json:"notes" db:"notes"`
	JoinedAt           time.Time `json:"joined_at" db:"joined_at"`   // UTC
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// JoinResult is returned after joining a waitlist.
type JoinResult struct {
	Feature    string `json:"feature"`
	Joined     bool   `json:"joined"`
	TotalCount int    `json:"total_count"`
}

// Status describes the user's position regarding a feature waitlist.
type Status struct {
	IsJoined   bool   `json:"is_joined"`
	Entry      *Entry `json:"entry"`
	Position   *int   `json:"position"`
	TotalCount int    `json:"total_count"`
}

// JoinRequest is the optional body of a join.
type JoinRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=500"`
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	jr.Notes = core.CleanString(jr.Notes)
	return validate.Struct(jr)
}

// DisplayName derives a feature display name from its identifier ("quick_quiz" -> "Quick Quiz").
func DisplayName(name string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(name, "_", " "))
}
