package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-verse-auth/internal/model"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// unique keys as the SQL schemas and is used for local runs and tests.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byUsername map[string]model.User
	byEmail    map[string]string
	byOAuth    map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byUsername: map[string]model.User{},
		byEmail:    map[string]string{},
		byOAuth:    map[string]string{},
	}
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byUsername[foldKey(username)]
	if !ok {
		return model.User{}, fmt.Errorf("find user by username: %w", model.ErrNotFound)
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byEmail[foldKey(email)]
	if !ok {
		return model.User{}, fmt.Errorf("find user by email: %w", model.ErrNotFound)
	}
	return r.byUsername[username], nil
}

func (r *MemoryUserRepository) FindByOAuthID(_ context.Context, provider model.OAuthProvider, oauthID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byOAuth[oauthKey(provider, oauthID)]
	if !ok {
		return model.User{}, fmt.Errorf("find user by oauth id: %w", model.ErrNotFound)
	}
	return r.byUsername[username], nil
}

func (r *MemoryUserRepository) Insert(_ context.Context, u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	usernameKey := foldKey(u.Username)
	emailKey := foldKey(u.Email)

	if _, exists := r.byUsername[usernameKey]; exists {
		return model.User{}, &model.DuplicateError{Field: "username"}
	}
	if _, exists := r.byEmail[emailKey]; exists {
		return model.User{}, &model.DuplicateError{Field: "email"}
	}
	hasOAuth := u.OAuthProvider != "" && u.OAuthID != ""
	if hasOAuth {
		if _, exists := r.byOAuth[oauthKey(u.OAuthProvider, u.OAuthID)]; exists {
			return model.User{}, &model.DuplicateError{Field: "oauth_id"}
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	r.byUsername[usernameKey] = u
	r.byEmail[emailKey] = usernameKey
	if hasOAuth {
		r.byOAuth[oauthKey(u.OAuthProvider, u.OAuthID)] = usernameKey
	}

	return u, nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, username string, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := foldKey(username)
	u, ok := r.byUsername[key]
	if !ok {
		return fmt.Errorf("update password: %w", model.ErrNotFound)
	}
	u.HashedPassword = hashedPassword
	u.UpdatedAt = time.Now().UTC()
	r.byUsername[key] = u
	return nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}

func foldKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func oauthKey(provider model.OAuthProvider, oauthID string) string {
	return string(provider) + "\x00" + oauthID
}
