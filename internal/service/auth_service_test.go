package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"go-verse-auth/internal/model"
	"go-verse-auth/internal/password"
	"go-verse-auth/internal/provider"
	"go-verse-auth/internal/repository"
	"go-verse-auth/internal/token"
)

const testSecret = "test-secret-key"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubVerifier struct {
	provider model.OAuthProvider
	identity model.ExternalIdentity
	err      error
	calls    atomic.Int32
}

func (v *stubVerifier) Provider() model.OAuthProvider { return v.provider }

func (v *stubVerifier) Verify(context.Context, string) (model.ExternalIdentity, error) {
	v.calls.Add(1)
	if v.err != nil {
		return model.ExternalIdentity{}, v.err
	}
	return v.identity, nil
}

func (v *stubVerifier) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{ClientID: string(v.provider) + "-client", RedirectURL: "https://app.example.com/auth/" + string(v.provider) + "/callback"}
}

type failingStore struct {
	repository.UserStore
}

func (failingStore) FindByUsername(context.Context, string) (model.User, error) {
	return model.User{}, errors.New("connection refused")
}

type fixture struct {
	svc    *AuthService
	store  *repository.MemoryUserRepository
	clock  *testClock
	google *stubVerifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	clock := newTestClock()
	codec, err := token.NewCodec(testSecret, token.WithClock(clock.Now))
	require.NoError(t, err)
	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	google := &stubVerifier{
		provider: model.ProviderGoogle,
		identity: model.ExternalIdentity{Provider: model.ProviderGoogle, SubjectID: "g-1", Email: "ann@gmail.com"},
	}
	store := repository.NewMemoryUserRepository()
	svc := NewAuthService(store, hasher, codec, provider.NewRegistry(google), AuthConfig{
		AccessTTL: 30 * time.Minute,
		SocialTTL: 15 * time.Minute,
		ResetTTL:  15 * time.Minute,
	})

	return fixture{svc: svc, store: store, clock: clock, google: google}
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "s3cret", user.HashedPassword)

	tok, err := f.svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), tok.ExpiresAt)

	me, err := f.svc.Authorize(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestRegisterConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
	require.NoError(t, err)

	t.Run("username checked before email", func(t *testing.T) {
		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
		require.ErrorIs(t, err, model.ErrUsernameTaken)
	})

	t.Run("email", func(t *testing.T) {
		_, err := f.svc.Register(ctx, "bob", "alice@example.com", "pw")
		require.ErrorIs(t, err, model.ErrEmailTaken)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.Register(ctx, " ", "x@example.com", "pw")
		require.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestRegisterRejectsProviderUsernames(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for _, username := range []string{"google_g-1", "Google_g-1", "FACEBOOK_42", " facebook_x"} {
		_, err := f.svc.Register(ctx, username, "squatter@example.com", "pw")
		require.ErrorIs(t, err, model.ErrInvalidInput, username)
		var verr *model.ValidationError
		require.True(t, errors.As(err, &verr), username)
		assert.Equal(t, "username", verr.Field)
	}

	_, err := f.svc.Register(ctx, "googler", "googler@example.com", "pw")
	require.NoError(t, err)

	auth, err := f.svc.OAuthLogin(ctx, "google", "provider-token")
	require.NoError(t, err)
	assert.Equal(t, "google_g-1", auth.User.Username)
	assert.Equal(t, "g-1", auth.User.OAuthID)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "alice@example.com", "right")
	require.NoError(t, err)
	_, err = f.svc.OAuthLogin(ctx, "google", "provider-token")
	require.NoError(t, err)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "wrong"},
		{"unknown user", "nobody", "right"},
		{"oauth-only account", "google_g-1", ""},
		{"oauth-only account with guess", "google_g-1", "anything"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, tc.username, tc.password)
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
			assert.Equal(t, model.ErrInvalidCredentials, err)
		})
	}
}

func TestLoginStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	codec, err := token.NewCodec(testSecret)
	require.NoError(t, err)

	svc := NewAuthService(failingStore{UserStore: f.store}, hasher, codec, provider.NewRegistry(), AuthConfig{})
	_, err = svc.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, model.ErrStoreFailure)
	assert.NotErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	t.Run("expiry boundary", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
		require.NoError(t, err)
		tok, err := f.svc.Login(ctx, "alice", "pw")
		require.NoError(t, err)

		f.clock.Advance(30*time.Minute - time.Second)
		_, err = f.svc.Authorize(ctx, tok.AccessToken)
		require.NoError(t, err)

		f.clock.Advance(2 * time.Second)
		_, err = f.svc.Authorize(ctx, tok.AccessToken)
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("foreign secret", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
		require.NoError(t, err)

		other, err := token.NewCodec("another-secret", token.WithClock(f.clock.Now))
		require.NoError(t, err)
		forged, _, err := other.Issue("alice", token.PurposeAccess, time.Hour)
		require.NoError(t, err)

		_, err = f.svc.Authorize(ctx, forged)
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.Authorize(context.Background(), "not-a-token")
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("subject no longer exists", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		codec, err := token.NewCodec(testSecret, token.WithClock(f.clock.Now))
		require.NoError(t, err)
		orphan, _, err := codec.Issue("ghost", token.PurposeAccess, time.Hour)
		require.NoError(t, err)

		_, err = f.svc.Authorize(context.Background(), orphan)
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("reset token is not a session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
		require.NoError(t, err)
		reset, err := f.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		_, err = f.svc.Authorize(ctx, reset.Token)
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})
}

func TestOAuthLogin(t *testing.T) {
	t.Parallel()

	t.Run("first login creates and repeat login reuses", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		first, err := f.svc.OAuthLogin(ctx, "google", "provider-token")
		require.NoError(t, err)
		assert.Equal(t, "google_g-1", first.User.Username)
		assert.Equal(t, model.ProviderGoogle, first.User.OAuthProvider)
		assert.Equal(t, "g-1", first.User.OAuthID)
		assert.False(t, first.User.HasPassword())

		second, err := f.svc.OAuthLogin(ctx, "Google", "provider-token")
		require.NoError(t, err)
		assert.Equal(t, first.User.ID, second.User.ID)
		assert.Equal(t, int32(2), f.google.calls.Load())

		me, err := f.svc.Authorize(ctx, second.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "google_g-1", me.Username)

		f.clock.Advance(15*time.Minute + time.Second)
		_, err = f.svc.Authorize(ctx, second.AccessToken)
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("provider rejection", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.google.err = provider.ErrInvalidToken

		_, err := f.svc.OAuthLogin(context.Background(), "google", "bad")
		require.ErrorIs(t, err, model.ErrVerificationFailed)

		_, err = f.store.FindByOAuthID(context.Background(), model.ProviderGoogle, "g-1")
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("empty token is not sent to the provider", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.OAuthLogin(context.Background(), "google", "  ")
		require.ErrorIs(t, err, model.ErrVerificationFailed)
		assert.Zero(t, f.google.calls.Load())
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.OAuthLogin(context.Background(), "github", "tok")
		require.ErrorIs(t, err, model.ErrVerificationFailed)
	})

	t.Run("email owned by a password account", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "ann", "ann@gmail.com", "pw")
		require.NoError(t, err)

		_, err = f.svc.OAuthLogin(ctx, "google", "provider-token")
		require.ErrorIs(t, err, model.ErrIdentityConflict)
	})
}

func TestIdentityReconcilerConcurrentFirstLogin(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryUserRepository()
	reconciler := NewIdentityReconciler(store)
	identity := model.ExternalIdentity{Provider: model.ProviderFacebook, SubjectID: "42", Email: "42@facebook.com"}

	const workers = 8
	var wg sync.WaitGroup
	ids := make(chan string, workers)
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := reconciler.GetOrCreate(context.Background(), identity)
			if err != nil {
				errs <- err
				return
			}
			ids <- u.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, model.ErrIdentityConflict)
	}

	seen := map[string]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)

	u, err := store.FindByOAuthID(context.Background(), model.ProviderFacebook, "42")
	require.NoError(t, err)
	assert.Equal(t, "facebook_42", u.Username)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	t.Run("new password replaces old", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "old-pw")
		require.NoError(t, err)

		reset, err := f.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now().Add(15*time.Minute), reset.ExpiresAt)

		require.NoError(t, f.svc.ConfirmPasswordReset(ctx, reset.Token, "new-pw"))

		_, err = f.svc.Login(ctx, "alice", "old-pw")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
		_, err = f.svc.Login(ctx, "alice", "new-pw")
		require.NoError(t, err)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.RequestPasswordReset(context.Background(), "nobody@example.com")
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
		require.NoError(t, err)
		reset, err := f.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		f.clock.Advance(15*time.Minute + time.Second)
		err = f.svc.ConfirmPasswordReset(ctx, reset.Token, "new-pw")
		require.ErrorIs(t, err, model.ErrInvalidResetToken)
	})

	t.Run("foreign secret", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
		require.NoError(t, err)

		other, err := token.NewCodec("another-secret", token.WithClock(f.clock.Now))
		require.NoError(t, err)
		forged, _, err := other.Issue("alice", token.PurposePasswordReset, time.Hour)
		require.NoError(t, err)

		err = f.svc.ConfirmPasswordReset(ctx, forged, "hijacked")
		require.ErrorIs(t, err, model.ErrInvalidResetToken)

		_, err = f.svc.Login(ctx, "alice", "pw")
		require.NoError(t, err)
	})

	t.Run("session token is not a reset token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw")
		require.NoError(t, err)
		session, err := f.svc.Login(ctx, "alice", "pw")
		require.NoError(t, err)

		err = f.svc.ConfirmPasswordReset(ctx, session.AccessToken, "new-pw")
		require.ErrorIs(t, err, model.ErrInvalidResetToken)
	})

	t.Run("subject deleted after issue", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		codec, err := token.NewCodec(testSecret, token.WithClock(f.clock.Now))
		require.NoError(t, err)
		orphan, _, err := codec.Issue("ghost", token.PurposePasswordReset, time.Minute)
		require.NoError(t, err)

		err = f.svc.ConfirmPasswordReset(context.Background(), orphan, "new-pw")
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("oauth account can set a password", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.OAuthLogin(ctx, "google", "provider-token")
		require.NoError(t, err)

		reset, err := f.svc.RequestPasswordReset(ctx, "ann@gmail.com")
		require.NoError(t, err)
		require.NoError(t, f.svc.ConfirmPasswordReset(ctx, reset.Token, "now-local"))

		_, err = f.svc.Login(ctx, "google_g-1", "now-local")
		require.NoError(t, err)
	})
}

func TestProviderConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	cfg, err := f.svc.ProviderConfig("google")
	require.NoError(t, err)
	assert.Equal(t, "google-client", cfg.ClientID)
	assert.Equal(t, "https://app.example.com/auth/google/callback", cfg.RedirectURI)

	_, err = f.svc.ProviderConfig("facebook")
	require.ErrorIs(t, err, model.ErrInvalidInput)
}
