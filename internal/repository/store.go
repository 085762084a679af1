package repository

import (
	"context"

	"go-verse-auth/internal/model"
)

// UserStore is durable user record storage. Lookups by username and email
// are case-insensitive. Missing records return model.ErrNotFound and
// unique-key violations return *model.DuplicateError.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByOAuthID(ctx context.Context, provider model.OAuthProvider, oauthID string) (model.User, error)
	Insert(ctx context.Context, user model.User) (model.User, error)
	UpdatePassword(ctx context.Context, username string, hashedPassword string) error
	Ping(ctx context.Context) error
}
