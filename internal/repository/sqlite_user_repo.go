package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"go-verse-auth/internal/model"
)

const sqliteUserColumns = `id, username, email, COALESCE(hashed_password, '') AS hashed_password,
	COALESCE(oauth_provider, '') AS oauth_provider, COALESCE(oauth_id, '') AS oauth_id,
	created_at, updated_at`

type sqliteUserRow struct {
	ID             string `db:"id"`
	Username       string `db:"username"`
	Email          string `db:"email"`
	HashedPassword string `db:"hashed_password"`
	OAuthProvider  string `db:"oauth_provider"`
	OAuthID        string `db:"oauth_id"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

func (row sqliteUserRow) toModel() model.User {
	return model.User{
		ID:             row.ID,
		Username:       row.Username,
		Email:          row.Email,
		HashedPassword: row.HashedPassword,
		OAuthProvider:  model.OAuthProvider(row.OAuthProvider),
		OAuthID:        row.OAuthID,
		CreatedAt:      fromMillis(row.CreatedAt),
		UpdatedAt:      fromMillis(row.UpdatedAt),
	}
}

// SQLiteUserRepository is the UserStore for single-node deployments.
type SQLiteUserRepository struct {
	db *sqlx.DB
}

func NewSQLiteUserRepository(db *sqlx.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := r.get(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE lower(username) = lower(?)`, strings.TrimSpace(username))
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

func (r *SQLiteUserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := r.get(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE lower(email) = lower(?)`, strings.TrimSpace(email))
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteUserRepository) FindByOAuthID(ctx context.Context, provider model.OAuthProvider, oauthID string) (model.User, error) {
	u, err := r.get(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE oauth_provider = ? AND oauth_id = ?`, string(provider), oauthID)
	if err != nil {
		return model.User{}, fmt.Errorf("find user by oauth id: %w", err)
	}
	return u, nil
}

func (r *SQLiteUserRepository) Insert(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = fromMillis(toMillis(now))
	u.UpdatedAt = u.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, hashed_password, oauth_provider, oauth_id, created_at, updated_at)
		 VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?)`,
		u.ID, u.Username, u.Email, u.HashedPassword, string(u.OAuthProvider), u.OAuthID, toMillis(now), toMillis(now))
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
			return model.User{}, &model.DuplicateError{Field: duplicateField(sqliteErr.Error()), Err: err}
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, username string, hashedPassword string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET hashed_password = ?, updated_at = ? WHERE lower(username) = lower(?)`,
		hashedPassword, toMillis(time.Now().UTC()), strings.TrimSpace(username))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update password: %w", model.ErrNotFound)
	}
	return nil
}

func (r *SQLiteUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteUserRepository) get(ctx context.Context, query string, args ...any) (model.User, error) {
	var row sqliteUserRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, err
	}
	return row.toModel(), nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
