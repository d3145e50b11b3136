package goal

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

// Visibilities
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Well-known status names (name_en)
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusPaused    = "paused"
)

var (
	DefaultCategory = Category{Name: "学习", NameEn: "learning"}
	DefaultStatus   = Status{Name: "进行中", NameEn: StatusActive}
	CompletedStatus = Status{Name: "已完成", NameEn: StatusCompleted}

	SeedCategories = []Category{
		DefaultCategory,
		{Name: "工作", NameEn: "work"},
		{Name: "健康", NameEn: "health"},
		{Name: "个人", NameEn: "personal"},
	}
	SeedStatuses = []Status{
		DefaultStatus,
		CompletedStatus,
		{Name: "已暂停", NameEn: StatusPaused},
	}
)

// OrderingFields are the goal fields a listing may be ordered by.
var OrderingFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"target_date": true,
	"progress":    true,
	"title":       true,
}

type Category struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	NameEn    string    `json:"name_en" db:"name_en"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

type Status struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	NameEn    string    `json:"name_en" db:"name_en"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

type Goal struct {
	ID          string      `json:"id" db:"id"`
	UserID      string      `json:"-" db:"user_id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	CategoryID  null.String `json:"-" db:"category_id"`
	StatusID    null.String `json:"-" db:"status_id"`
	Category    *Category   `json:"category" db:"-"`
	Status      *Status     `json:"status" db:"-"`
	Visibility  string      `json:"visibility" db:"visibility"`
	Progress    int         `json:"progress" db:"progress"`
	TargetDate  core.Date   `json:"target_date" db:"target_date"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (g Goal) IsCompleted() bool {
	return g.Status != nil && g.Status.NameEn == StatusCompleted
}

// IsOverdue reports whether an uncompleted goal's target date has passed.
func (g Goal) IsOverdue(now time.Time) bool {
	if g.IsCompleted() {
		return false
	}
	return g.TargetDate.Before(now)
}

// Detail is the goal as shown to its owner.
type Detail struct {
	Goal
	IsOverdue bool `json:"is_overdue"`
}

// Public is the goal as shown to anyone when it is public.
type Public struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    *Category    `json:"category"`
	Status      *Status      `json:"status"`
	Progress    int          `json:"progress"`
	TargetDate  core.Date    `json:"target_date"`
	CreatedAt   time.Time    `json:"created_at"`
	User        user.Summary `json:"user"`
}

type Suggestion struct {
	ID          string    `json:"id" db:"id"`
	GoalID      string    `json:"-" db:"goal_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Priority    string    `json:"priority" db:"priority"`
	Accepted    bool      `json:"accepted" db:"accepted"`
	Completed   bool      `json:"completed" db:"completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Statistics struct {
	Total     int `json:"total" db:"total"`
	Active    int `json:"active" db:"active"`
	Completed int `json:"completed" db:"completed"`
	Paused    int `json:"paused" db:"paused"`
	Public    int `json:"public" db:"public"`
	Private   int `json:"private" db:"private"`
}

// Filter holds the query parameters of the goal listing.
type Filter struct {
	StatusID   string `query:"status_id"`
	CategoryID string `query:"category_id"`
	Visibility string `query:"visibility"`
}

// NewGoal contains information needed to create a Goal.
type NewGoal struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description"`
	CategoryID  *string   `json:"category_id"`
	StatusID    *string   `json:"status_id"`
	Visibility  string    `json:"visibility" validate:"omitempty,oneof=private public"`
	TargetDate  core.Date `json:"target_date"`
}

func (ng *NewGoal) Validate(validate *validator.Validate) error {
	ng.Title = core.CleanString(ng.Title)
	ng.Description = core.CleanString(ng.Description)
	if ng.Visibility == "" {
		ng.Visibility = VisibilityPrivate
	}
	return validate.Struct(ng)
}

type UpdateGoal struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description"`
	CategoryID  *string    `json:"category_id"`
	StatusID    *string    `json:"status_id"`
	Visibility  *string    `json:"visibility" validate:"omitempty,oneof=private public"`
	Progress    *int       `json:"progress" validate:"omitempty,min=0,max=100"`
	TargetDate  *core.Date `json:"target_date"`
}

func (ug *UpdateGoal) Validate(validate *validator.Validate) error {
	return validate.Struct(ug)
}

func (ug UpdateGoal) apply(g *Goal) {
	if ug.Title != nil {
		g.Title = core.CleanString(*ug.Title)
	}
	if ug.Description != nil {
		g.Description = core.CleanString(*ug.Description)
	}
	if ug.Visibility != nil {
		g.Visibility = *ug.Visibility
	}
	if ug.Progress != nil {
		g.Progress = *ug.Progress
	}
	if ug.TargetDate != nil {
		g.TargetDate = *ug.TargetDate
	}
}

// NewCategory is used for both categories and statuses.
type NewCategory struct {
	Name   string `json:"name" validate:"required,notblank,max=50"`
	NameEn string `json:"name_en" validate:"required,notblank,max=50"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.NameEn = core.CleanString(nc.NameEn)
	return validate.Struct(nc)
}

type AcceptSuggestion struct {
	Accepted *bool `json:"accepted" validate:"required"`
}

func (as *AcceptSuggestion) Validate(validate *validator.Validate) error {
	return validate.Struct(as)
}
