package inmemdb

import (
	"context"
	"time"

	"github.com/aaronlou/innergrow.ai/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) EmailExists(_ context.Context, email string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.byEmail(email) != nil, nil
}

func (repo *userRepository) byEmail(email string) *user.User {
	for _, u := range repo.db.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, prefs user.Preferences) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.byEmail(usr.Email) != nil {
		return user.User{}, user.ErrEmailExists
	}
	prefs.UserID = usr.ID
	repo.db.users[usr.ID] = &usr
	repo.db.prefs[usr.ID] = &prefs
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if u, ok := repo.db.users[id]; ok {
		return *u, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if u := repo.byEmail(email); u != nil {
		return *u, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByID(_ context.Context, ids ...string) (map[string]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make(map[string]user.User, len(ids))
	for _, id := range ids {
		if u, ok := repo.db.users[id]; ok {
			users[id] = *u
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.Preferences = nil
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetPreferences(_ context.Context, userID string) (user.Preferences, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.prefs[userID]; ok {
		return *p, nil
	}
	return user.Preferences{}, user.ErrPreferencesNotFound
}

func (repo *userRepository) SavePreferences(_ context.Context, prefs user.Preferences) (user.Preferences, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[prefs.UserID]; !ok {
		return user.Preferences{}, user.ErrNotFound
	}
	if old, ok := repo.db.prefs[prefs.UserID]; ok {
		prefs.CreatedAt = old.CreatedAt
	}
	repo.db.prefs[prefs.UserID] = &prefs
	return prefs, nil
}

func (repo *userRepository) GetOrCreateToken(_ context.Context, tok user.AuthToken) (user.AuthToken, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, t := range repo.db.tokens {
		if t.UserID == tok.UserID {
			return *t, nil
		}
	}
	repo.db.tokens[tok.Key] = &tok
	return tok, nil
}

func (repo *userRepository) GetToken(_ context.Context, key string) (user.AuthToken, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.tokens[key]; ok {
		return *t, nil
	}
	return user.AuthToken{}, user.ErrTokenNotFound
}

func (repo *userRepository) deleteTokens(match func(t *user.AuthToken) bool) []string {
	keys := make([]string, 0)
	for k, t := range repo.db.tokens {
		if match(t) {
			keys = append(keys, k)
			delete(repo.db.tokens, k)
		}
	}
	return keys
}

func (repo *userRepository) DeleteUserTokens(_ context.Context, userID string) ([]string, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.deleteTokens(func(t *user.AuthToken) bool { return t.UserID == userID }), nil
}

func (repo *userRepository) DeleteExpiredTokens(_ context.Context, before time.Time) ([]string, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.deleteTokens(func(t *user.AuthToken) bool { return t.CreatedAt.Before(before) }), nil
}
