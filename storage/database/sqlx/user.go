package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

const userColumns = `id, email, username, name, avatar, avatar_key, bio, is_active, is_staff,
	password_hash, date_joined, updated_at, last_login`

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	return exists, errors.Wrap(err, "checking email")
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, prefs user.Preferences) (user.User, error) {
	prefs.UserID = usr.ID
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES (:id, :email, :username, :name, :avatar, :avatar_key, :bio, :is_active, :is_staff,
				:password_hash, :date_joined, :updated_at, :last_login)`, usr)
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "inserting user")
		}
		_, err = tx.NamedExecContext(ctx, insertPreferences, prefs)
		return errors.Wrap(err, "inserting preferences")
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var usr user.User
	err := repo.db.GetContext(ctx, &usr, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var usr user.User
	err := repo.db.GetContext(ctx, &usr, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return usr, nil
}

func (repo userRepository) GetUsersByID(ctx context.Context, ids ...string) (map[string]user.User, error) {
	res := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	q, args, err := in(repo.db, `SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var users []user.User
	if err = repo.db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	for _, u := range users {
		res[u.ID] = u
	}
	return res, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE users SET
			name = :name, avatar = :avatar, avatar_key = :avatar_key, bio = :bio, is_active = :is_active,
			is_staff = :is_staff, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	usr.Preferences = nil
	return usr, nil
}

const (
	preferencesColumns = `user_id, theme, language, email_notifications, push_notifications, goal_reminders,
		show_profile, share_progress, created_at, updated_at`
	insertPreferences = `
		INSERT INTO user_preferences (` + preferencesColumns + `)
		VALUES (:user_id, :theme, :language, :email_notifications, :push_notifications, :goal_reminders,
			:show_profile, :share_progress, :created_at, :updated_at)`
)

func (repo userRepository) GetPreferences(ctx context.Context, userID string) (user.Preferences, error) {
	var prefs user.Preferences
	err := repo.db.GetContext(ctx, &prefs, `SELECT `+preferencesColumns+` FROM user_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return user.Preferences{}, trapNoRowsErr(err, user.ErrPreferencesNotFound, "selecting preferences")
	}
	return prefs, nil
}

func (repo userRepository) SavePreferences(ctx context.Context, prefs user.Preferences) (user.Preferences, error) {
	var saved user.Preferences
	q, args, err := repo.db.BindNamed(insertPreferences+`
		ON CONFLICT (user_id) DO UPDATE SET
			theme = EXCLUDED.theme, language = EXCLUDED.language,
			email_notifications = EXCLUDED.email_notifications, push_notifications = EXCLUDED.push_notifications,
			goal_reminders = EXCLUDED.goal_reminders, show_profile = EXCLUDED.show_profile,
			share_progress = EXCLUDED.share_progress, updated_at = EXCLUDED.updated_at
		RETURNING `+preferencesColumns, prefs)
	if err != nil {
		return user.Preferences{}, errors.Wrap(err, "binding preferences")
	}
	if err = repo.db.GetContext(ctx, &saved, q, args...); err != nil {
		return user.Preferences{}, errors.Wrap(err, "saving preferences")
	}
	return saved, nil
}

func (repo userRepository) GetOrCreateToken(ctx context.Context, tok user.AuthToken) (user.AuthToken, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (key, user_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`, tok.Key, tok.UserID, tok.CreatedAt)
	if err != nil {
		return user.AuthToken{}, errors.Wrap(err, "inserting token")
	}
	var saved user.AuthToken
	err = repo.db.GetContext(ctx, &saved, `SELECT key, user_id, created_at FROM auth_tokens WHERE user_id = $1`, tok.UserID)
	return saved, errors.Wrap(err, "selecting token")
}

func (repo userRepository) GetToken(ctx context.Context, key string) (user.AuthToken, error) {
	var tok user.AuthToken
	err := repo.db.GetContext(ctx, &tok, `SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`, key)
	if err != nil {
		return user.AuthToken{}, trapNoRowsErr(err, user.ErrTokenNotFound, "selecting token")
	}
	return tok, nil
}

func (repo userRepository) DeleteUserTokens(ctx context.Context, userID string) ([]string, error) {
	keys := make([]string, 0)
	err := repo.db.SelectContext(ctx, &keys, `DELETE FROM auth_tokens WHERE user_id = $1 RETURNING key`, userID)
	return keys, errors.Wrap(err, "deleting tokens")
}

func (repo userRepository) DeleteExpiredTokens(ctx context.Context, before time.Time) ([]string, error) {
	keys := make([]string, 0)
	err := repo.db.SelectContext(ctx, &keys, `DELETE FROM auth_tokens WHERE created_at < $1 RETURNING key`, before.UTC())
	return keys, errors.Wrap(err, "deleting expired tokens")
}
