package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
)

// Avatar upload rules
const (
	AvatarMaxSize   = 5 << 20
	avatarKeyPrefix = "avatars"
)

var AvatarExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("user not found")
	ErrTokenNotFound       = core.NewNotFoundError("token not found")
	ErrPreferencesNotFound = core.NewNotFoundError("preferences not found")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDeactivated  = errors.New("account deactivated")
)

type (
	Repository interface {
		EmailExists(ctx context.Context, email string) (bool, error)
		CreateUser(ctx context.Context, usr User, prefs Preferences) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// GetUsersByID returns the found users keyed by ID; unknown IDs are skipped.
		GetUsersByID(ctx context.Context, ids ...string) (map[string]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		GetPreferences(ctx context.Context, userID string) (Preferences, error)
		SavePreferences(ctx context.Context, prefs Preferences) (Preferences, error)
		GetOrCreateToken(ctx context.Context, tok AuthToken) (AuthToken, error)
		GetToken(ctx context.Context, key string) (AuthToken, error)
		// DeleteUserTokens returns the keys of the deleted tokens.
		DeleteUserTokens(ctx context.Context, userID string) ([]string, error)
		// DeleteExpiredTokens removes the tokens created before `before`.
		DeleteExpiredTokens(ctx context.Context, before time.Time) ([]string, error)
	}

	// TokenCache keeps recently validated tokens out of the database.
	TokenCache interface {
		Get(ctx context.Context, key string) (AuthToken, bool, error)
		Set(ctx context.Context, tok AuthToken) error
		Delete(ctx context.Context, keys ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		storage core.FileStorage
		cache   TokenCache // optional
	}
)

func NewService(repo Repository, mailSvc core.EmailService, storage core.FileStorage, cache TokenCache) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, storage: storage, cache: cache}
}

// Validate cleans and validates the registration input.
func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	exists, err := svc.repo.EmailExists(ctx, nu.Email)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (lc *LoginCredentials) Validate(validate *validator.Validate) error {
	lc.Clean()
	return validate.Struct(lc)
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Clean()
	return validate.Struct(up)
}

func (up UpdatePreferences) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}

func (sp SetPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(sp)
}

// Register creates the user along with its preferences, then sends the welcome email.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:         uuid.NewString(),
		Email:      nu.Email,
		Username:   nu.Username(),
		Name:       nu.Name,
		IsActive:   true,
		IsStaff:    nu.IsStaff,
		DateJoined: now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr, DefaultPreferences(usr.ID))
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
		Subject:      "Welcome to " + core.Conf.AppName,
		TemplateName: "welcome",
		TemplateData: usr,
	})
}

// Authenticate checks the credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr.LastLogin = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

// IssueToken returns the user's API token key, creating it when needed.
func (svc *Service) IssueToken(ctx context.Context, usr User) (AuthToken, error) {
	return svc.repo.GetOrCreateToken(ctx, AuthToken{
		Key:       uuid.NewString(),
		UserID:    usr.ID,
		CreatedAt: time.Now().UTC(),
	})
}

// GetToken looks the token up in the cache first; cache failures fall back to the repository.
func (svc *Service) GetToken(ctx context.Context, key string) (AuthToken, error) {
	if svc.cache != nil {
		if tok, ok, err := svc.cache.Get(ctx, key); err == nil && ok {
			return tok, nil
		}
	}
	tok, err := svc.repo.GetToken(ctx, key)
	if err != nil {
		return AuthToken{}, err
	}
	if svc.cache != nil {
		_ = svc.cache.Set(ctx, tok)
	}
	return tok, nil
}

func (svc *Service) uncache(ctx context.Context, keys []string) error {
	if svc.cache == nil || len(keys) == 0 {
		return nil
	}
	return errors.Wrap(svc.cache.Delete(ctx, keys...), "evicting tokens")
}

func (svc *Service) revokeTokens(ctx context.Context, usr User) error {
	keys, err := svc.repo.DeleteUserTokens(ctx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "deleting tokens")
	}
	return svc.uncache(ctx, keys)
}

// Logout revokes every token of the user.
func (svc *Service) Logout(ctx context.Context, usr User) error {
	return svc.revokeTokens(ctx, usr)
}

// PurgeExpiredTokens deletes the tokens older than `ttl` and returns how many were removed.
func (svc *Service) PurgeExpiredTokens(ctx context.Context, ttl time.Duration) (int, error) {
	keys, err := svc.repo.DeleteExpiredTokens(ctx, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired tokens")
	}
	return len(keys), svc.uncache(ctx, keys)
}

func (svc *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	return svc.repo.EmailExists(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetManyByID(ctx context.Context, ids ...string) (map[string]User, error) {
	if len(ids) == 0 {
		return map[string]User{}, nil
	}
	return svc.repo.GetUsersByID(ctx, ids...)
}

// Profile returns the user with its preferences.
func (svc *Service) Profile(ctx context.Context, usr User) (User, error) {
	prefs, err := svc.GetPreferences(ctx, usr)
	if err != nil {
		return User{}, err
	}
	usr.Preferences = &prefs
	return usr, nil
}

func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	if up.Name != nil {
		usr.Name = *up.Name
	}
	if up.Bio != nil {
		usr.Bio = *up.Bio
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// UploadAvatar stores the image and replaces the previous avatar.
func (svc *Service) UploadAvatar(ctx context.Context, usr User, f core.File) (User, error) {
	if err := core.CheckUpload("avatar", f, AvatarMaxSize, AvatarExts...); err != nil {
		return User{}, err
	}
	key := core.ObjectKey(avatarKeyPrefix, f.Name)
	if _, err := svc.storage.Upload(ctx, key, f); err != nil {
		return User{}, core.NewProviderError("uploading avatar", err)
	}
	oldKey := usr.AvatarKey
	usr.AvatarKey = key
	usr.Avatar = svc.storage.PublicURL(key)
	usr.UpdatedAt = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	if oldKey != "" {
		if err := svc.storage.Delete(ctx, oldKey); err != nil && errors.Cause(err) != core.ErrObjectNotFound {
			return usr, errors.Wrap(err, "deleting previous avatar")
		}
	}
	return usr, nil
}

// GetPreferences returns the user's preferences, creating the defaults when missing.
func (svc *Service) GetPreferences(ctx context.Context, usr User) (Preferences, error) {
	prefs, err := svc.repo.GetPreferences(ctx, usr.ID)
	if err == nil {
		return prefs, nil
	}
	if errors.Cause(err) != ErrPreferencesNotFound {
		return Preferences{}, err
	}
	return svc.repo.SavePreferences(ctx, DefaultPreferences(usr.ID))
}

func (svc *Service) UpdatePreferences(ctx context.Context, usr User, up UpdatePreferences) (Preferences, error) {
	prefs, err := svc.GetPreferences(ctx, usr)
	if err != nil {
		return Preferences{}, err
	}
	up.apply(&prefs)
	prefs.UpdatedAt = time.Now().UTC()
	return svc.repo.SavePreferences(ctx, prefs)
}

// SetPassword changes the password and revokes existing tokens.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	return usr, svc.revokeTokens(ctx, usr)
}
