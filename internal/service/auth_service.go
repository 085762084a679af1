package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go-verse-auth/internal/model"
	"go-verse-auth/internal/password"
	"go-verse-auth/internal/provider"
	"go-verse-auth/internal/repository"
	"go-verse-auth/internal/token"
)

const tokenTypeBearer = "bearer"

var tracer = otel.Tracer("go-verse-auth/internal/service")

// AuthConfig is fixed at construction.
type AuthConfig struct {
	AccessTTL time.Duration
	SocialTTL time.Duration
	ResetTTL  time.Duration
}

type AuthService struct {
	users      repository.UserStore
	hasher     *password.Hasher
	codec      *token.Codec
	providers  *provider.Registry
	reconciler *IdentityReconciler
	cfg        AuthConfig
}

func NewAuthService(
	users repository.UserStore,
	hasher *password.Hasher,
	codec *token.Codec,
	providers *provider.Registry,
	cfg AuthConfig,
) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.SocialTTL <= 0 {
		cfg.SocialTTL = token.DefaultTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = token.DefaultTTL
	}

	return &AuthService{
		users:      users,
		hasher:     hasher,
		codec:      codec,
		providers:  providers,
		reconciler: NewIdentityReconciler(users),
		cfg:        cfg,
	}
}

// Register creates a password account. The username is checked before the
// email so a request that collides on both reports the username. Usernames
// shaped like "{provider}_..." belong to OAuthLogin and are rejected.
func (s *AuthService) Register(ctx context.Context, username string, email string, pass string) (user model.User, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || pass == "" {
		return model.User{}, fmt.Errorf("%w: username, email and password are required", model.ErrInvalidInput)
	}
	if model.HasOAuthPrefix(username) {
		return model.User{}, &model.ValidationError{Field: "username", Message: "prefix is reserved for identity provider accounts"}
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return model.User{}, model.ErrUsernameTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, storeFailure(err)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return model.User{}, model.ErrEmailTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, storeFailure(err)
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	created, err := s.users.Insert(ctx, model.User{
		Username:       username,
		Email:          email,
		HashedPassword: hash,
	})
	if err != nil {
		var dup *model.DuplicateError
		if errors.As(err, &dup) {
			switch dup.Field {
			case "username":
				return model.User{}, model.ErrUsernameTaken
			case "email":
				return model.User{}, model.ErrEmailTaken
			}
		}
		return model.User{}, storeFailure(err)
	}

	slog.InfoContext(ctx, "user registered", "username", created.Username)
	return created, nil
}

// Login exchanges a username and password for an access token. An unknown
// user, an account without a password and a wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username string, pass string) (out model.AccessToken, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.hasher.VerifyDummy(pass)
			return model.AccessToken{}, model.ErrInvalidCredentials
		}
		return model.AccessToken{}, storeFailure(err)
	}

	if !user.HasPassword() {
		s.hasher.VerifyDummy(pass)
		return model.AccessToken{}, model.ErrInvalidCredentials
	}

	if !s.hasher.Verify(pass, user.HashedPassword) {
		return model.AccessToken{}, model.ErrInvalidCredentials
	}

	signed, expiresAt, err := s.codec.Issue(user.Username, token.PurposeAccess, s.cfg.AccessTTL)
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("issue access token: %w", err)
	}

	return model.AccessToken{AccessToken: signed, TokenType: tokenTypeBearer, ExpiresAt: expiresAt}, nil
}

// OAuthLogin verifies accessToken with the named provider, reconciles the
// identity onto a local user and issues a session token for it.
func (s *AuthService) OAuthLogin(ctx context.Context, providerName string, accessToken string) (out model.SocialAuth, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.OAuthLogin")
	span.SetAttributes(attribute.String("auth.provider", providerName))
	defer func() { endSpan(span, err) }()

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return model.SocialAuth{}, fmt.Errorf("%w: access token is required", model.ErrVerificationFailed)
	}

	verifier, err := s.providers.Lookup(providerName)
	if err != nil {
		return model.SocialAuth{}, fmt.Errorf("%w: %v", model.ErrVerificationFailed, err)
	}

	identity, err := verifier.Verify(ctx, accessToken)
	if err != nil {
		slog.WarnContext(ctx, "provider verification failed", "provider", providerName, "error", err.Error())
		return model.SocialAuth{}, fmt.Errorf("%w: %v", model.ErrVerificationFailed, err)
	}

	user, err := s.reconciler.GetOrCreate(ctx, identity)
	if err != nil {
		return model.SocialAuth{}, err
	}

	signed, _, err := s.codec.Issue(user.Username, token.PurposeAccess, s.cfg.SocialTTL)
	if err != nil {
		return model.SocialAuth{}, fmt.Errorf("issue access token: %w", err)
	}

	return model.SocialAuth{AccessToken: signed, User: user}, nil
}

// Authorize resolves a bearer token to its current user. A valid token for
// a user that no longer exists is still unauthorized.
func (s *AuthService) Authorize(ctx context.Context, tokenString string) (user model.User, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Authorize")
	defer func() { endSpan(span, err) }()

	claims, err := s.codec.Parse(tokenString)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	if claims.Purpose != token.PurposeAccess {
		return model.User{}, fmt.Errorf("%w: token purpose %q", model.ErrUnauthorized, claims.Purpose)
	}

	user, err = s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, fmt.Errorf("%w: subject no longer exists", model.ErrUnauthorized)
		}
		return model.User{}, storeFailure(err)
	}

	return user, nil
}

// RequestPasswordReset issues a short-lived reset token for the account
// owning email. Delivering the token is the caller's concern.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (out model.ResetToken, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ResetToken{}, model.ErrUserNotFound
		}
		return model.ResetToken{}, storeFailure(err)
	}

	signed, expiresAt, err := s.codec.Issue(user.Username, token.PurposePasswordReset, s.cfg.ResetTTL)
	if err != nil {
		return model.ResetToken{}, fmt.Errorf("issue reset token: %w", err)
	}

	slog.InfoContext(ctx, "password reset requested", "username", user.Username, "expires_at", expiresAt)
	return model.ResetToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// ConfirmPasswordReset replaces the password of the reset token's subject.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, resetToken string, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "AuthService.ConfirmPasswordReset")
	defer func() { endSpan(span, err) }()

	claims, err := s.codec.Parse(resetToken)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidResetToken, err)
	}
	if claims.Purpose != token.PurposePasswordReset {
		return fmt.Errorf("%w: token purpose %q", model.ErrInvalidResetToken, claims.Purpose)
	}

	user, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrUserNotFound
		}
		return storeFailure(err)
	}

	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", model.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	if err := s.users.UpdatePassword(ctx, user.Username, hash); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrUserNotFound
		}
		return storeFailure(err)
	}

	slog.InfoContext(ctx, "password reset confirmed", "username", user.Username)
	return nil
}

// ProviderConfig returns the public client settings the frontend needs to
// start a provider's sign-in flow.
func (s *AuthService) ProviderConfig(providerName string) (model.ProviderConfig, error) {
	verifier, err := s.providers.Lookup(providerName)
	if err != nil {
		return model.ProviderConfig{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	cfg := verifier.OAuth2Config()
	return model.ProviderConfig{ClientID: cfg.ClientID, RedirectURI: cfg.RedirectURL}, nil
}

func (s *AuthService) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", model.ErrStoreFailure, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
