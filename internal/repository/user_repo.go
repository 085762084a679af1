package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-verse-auth/internal/model"
)

const pgUniqueViolation = "23505"

const pgUserColumns = `id::text, username, email, COALESCE(hashed_password, ''),
	COALESCE(oauth_provider, ''), COALESCE(oauth_id, ''), created_at, updated_at`

// UserRepository is the PostgreSQL UserStore.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username))

	u, err := scanPgUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))

	u, err := scanPgUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByOAuthID(ctx context.Context, provider model.OAuthProvider, oauthID string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE oauth_provider = $1 AND oauth_id = $2`,
		string(provider), oauthID)

	u, err := scanPgUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("find user by oauth id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Insert(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, hashed_password, oauth_provider, oauth_id, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
		u.ID, u.Username, u.Email, u.HashedPassword, string(u.OAuthProvider), u.OAuthID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return model.User{}, &model.DuplicateError{Field: duplicateField(pgErr.ConstraintName), Err: err}
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, username string, hashedPassword string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET hashed_password = $2, updated_at = $3 WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username), hashedPassword, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password: %w", model.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanPgUser(row pgx.Row) (model.User, error) {
	var u model.User
	var provider string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &provider, &u.OAuthID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.OAuthProvider = model.OAuthProvider(provider)
	return u, nil
}

// duplicateField maps a unique index or constraint name onto the user
// field it guards.
func duplicateField(constraint string) string {
	constraint = strings.ToLower(constraint)
	switch {
	case strings.Contains(constraint, "email"):
		return "email"
	case strings.Contains(constraint, "oauth"):
		return "oauth_id"
	default:
		return "username"
	}
}
