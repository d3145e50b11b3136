package user

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/aaronlou/innergrow.ai/core"
)

// Preference choices
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"

	LanguageEN = "en"
	LanguageZH = "zh"
)

type User struct {
	ID           string       `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	Username     string       `json:"username" db:"username"`
	Name         string       `json:"name" db:"name"`
	Avatar       string       `json:"avatar" db:"avatar"`
	AvatarKey    string       `json:"-" db:"avatar_key"`
	Bio          string       `json:"bio" db:"bio"`
	IsActive     bool         `json:"is_active" db:"is_active"`
	IsStaff      bool         `json:"is_staff" db:"is_staff"`
	PasswordHash []byte       `json:"-" db:"password_hash"`
	DateJoined   time.Time    `json:"date_joined" db:"date_joined"` // UTC
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`   // UTC
	LastLogin    null.Time    `json:"last_login" db:"last_login"`   // UTC
	Preferences  *Preferences `json:"preferences,omitempty" db:"-"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// DisplayName is the name shown next to the user's content.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Summary is the public view of a user embedded in other resources.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.DisplayName(), Avatar: u.Avatar}
}

type Preferences struct {
	UserID             string    `json:"-" db:"user_id"`
	Theme              string    `json:"theme" db:"theme"`
	Language           string    `json:"language" db:"language"`
	EmailNotifications bool      `json:"email_notifications" db:"email_notifications"`
	PushNotifications  bool      `json:"push_notifications" db:"push_notifications"`
	GoalReminders      bool      `json:"goal_reminders" db:"goal_reminders"`
	ShowProfile        bool      `json:"show_profile" db:"show_profile"`
	ShareProgress      bool      `json:"share_progress" db:"share_progress"`
	CreatedAt          time.Time `json:"-" db:"created_at"`
	UpdatedAt          time.Time `json:"-" db:"updated_at"`
}

// DefaultPreferences returns the preferences every new user starts with.
func DefaultPreferences(userID string) Preferences {
	now := time.Now().UTC()
	return Preferences{
		UserID:             userID,
		Theme:              ThemeSystem,
		Language:           LanguageZH,
		EmailNotifications: true,
		PushNotifications:  true,
		GoalReminders:      true,
		ShowProfile:        true,
		ShareProgress:      false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// AuthToken is the server-side key backing an issued API token.
type AuthToken struct {
	Key       string    `db:"key"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required,min=2,max=50"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	IsStaff         bool   `json:"-"`
}

func (nu *NewUser) Clean() {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Name = core.CleanString(nu.Name)
}

// Username derives the username from the local part of the email.
func (nu NewUser) Username() string {
	return strings.SplitN(nu.Email, "@", 2)[0]
}

type LoginCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (lc *LoginCredentials) Clean() {
	lc.Email = core.CleanString(lc.Email, true /* lower */)
}

// UpdateProfile defines what information may be provided to modify the current User.
type UpdateProfile struct {
	Name *string `json:"name" validate:"omitempty,min=2,max=50"`
	Bio  *string `json:"bio" validate:"omitempty,max=500"`
}

func (up *UpdateProfile) Clean() {
	if up.Name != nil {
		name := core.CleanString(*up.Name)
		up.Name = &name
	}
	if up.Bio != nil {
		bio := core.CleanString(*up.Bio)
		up.Bio = &bio
	}
}

type UpdatePreferences struct {
	Theme              *string `json:"theme" validate:"omitempty,oneof=light dark system"`
	Language           *string `json:"language" validate:"omitempty,oneof=en zh"`
	EmailNotifications *bool   `json:"email_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
	GoalReminders      *bool   `json:"goal_reminders"`
	ShowProfile        *bool   `json:"show_profile"`
	ShareProgress      *bool   `json:"share_progress"`
}

func (up UpdatePreferences) apply(p *Preferences) {
	if up.Theme != nil {
		p.Theme = *up.Theme
	}
	if up.Language != nil {
		p.Language = *up.Language
	}
	if up.EmailNotifications != nil {
		p.EmailNotifications = *up.EmailNotifications
	}
	if up.PushNotifications != nil {
		p.PushNotifications = *up.PushNotifications
	}
	if up.GoalReminders != nil {
		p.GoalReminders = *up.GoalReminders
	}
	if up.ShowProfile != nil {
		p.ShowProfile = *up.ShowProfile
	}
	if up.ShareProgress != nil {
		p.ShareProgress = *up.ShareProgress
	}
}

// SetPassword is used by admins to reset a user's password.
type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Name            string `json:"-"`
	Email           string `json:"-"`
}
