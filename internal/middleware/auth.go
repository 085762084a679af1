package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-verse-auth/internal/model"
)

type authorizer interface {
	Authorize(ctx context.Context, token string) (model.User, error)
}

type contextKey string

const authUserContextKey contextKey = "auth_user"

const (
	bearerPrefix         = "bearer "
	msgCouldNotValidate  = "Could not validate credentials"
	wwwAuthenticateValue = "Bearer"
)

type AuthMiddleware struct {
	authorizer authorizer
}

func NewAuthMiddleware(authorizer authorizer) *AuthMiddleware {
	return &AuthMiddleware{authorizer: authorizer}
}

// RequireAuth resolves the bearer token to its user and stores it in the
// request context for UserFromContext.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			writeUnauthorized(w, "missing or invalid authorization header")
			return
		}

		user, err := m.authorizer.Authorize(r.Context(), strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			if errors.Is(err, model.ErrStoreFailure) {
				slog.ErrorContext(r.Context(), "authorize request",
					"request_id", RequestIDFromContext(r.Context()),
					"error", err.Error(),
				)
				writeErrorBody(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error", "")
				return
			}
			writeUnauthorized(w, "")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(authUserContextKey).(model.User)
	return user, ok
}

func withUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, authUserContextKey, user)
}

func writeUnauthorized(w http.ResponseWriter, details string) {
	w.Header().Set("WWW-Authenticate", wwwAuthenticateValue)
	writeErrorBody(w, http.StatusUnauthorized, "UNAUTHORIZED", msgCouldNotValidate, details)
}
