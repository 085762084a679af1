// Package provider verifies access tokens issued by external identity
// providers against the provider's own user-info endpoint.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"go-verse-auth/internal/model"
)

var (
	ErrInvalidToken    = errors.New("invalid provider token")
	ErrUnknownProvider = errors.New("unknown identity provider")
)

// ProviderError carries the provider's own failure text.
type ProviderError struct {
	Provider model.OAuthProvider
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Verifier checks a caller-supplied access token with the live provider.
// Implementations never cache results.
type Verifier interface {
	Provider() model.OAuthProvider
	Verify(ctx context.Context, accessToken string) (model.ExternalIdentity, error)
	OAuth2Config() *oauth2.Config
}

type Registry struct {
	verifiers map[model.OAuthProvider]Verifier
}

func NewRegistry(verifiers ...Verifier) *Registry {
	r := &Registry{verifiers: make(map[model.OAuthProvider]Verifier, len(verifiers))}
	for _, v := range verifiers {
		r.verifiers[v.Provider()] = v
	}
	return r
}

func (r *Registry) Lookup(name string) (Verifier, error) {
	v, ok := r.verifiers[model.OAuthProvider(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return v, nil
}

// NewHTTPClient returns the client used for provider calls. Timeouts are
// reported like any other transport failure.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func callbackURL(frontendURL string, provider model.OAuthProvider) string {
	return strings.TrimRight(frontendURL, "/") + "/auth/" + string(provider) + "/callback"
}
