package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"

	"go-verse-auth/internal/model"
)

const DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

type GoogleConfig struct {
	ClientID    string
	FrontendURL string
	UserInfoURL string
}

// Google verifies Google OAuth access tokens via the userinfo endpoint.
type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

func NewGoogle(cfg GoogleConfig, httpClient *http.Client) *Google {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = DefaultGoogleUserInfoURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	return &Google{
		cfg: &oauth2.Config{
			ClientID:    cfg.ClientID,
			Endpoint:    googleOAuth.Endpoint,
			Scopes:      []string{"openid", "profile", "email"},
			RedirectURL: callbackURL(cfg.FrontendURL, model.ProviderGoogle),
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
	}
}

func (g *Google) Provider() model.OAuthProvider {
	return model.ProviderGoogle
}

func (g *Google) OAuth2Config() *oauth2.Config {
	return g.cfg
}

func (g *Google) Verify(ctx context.Context, accessToken string) (model.ExternalIdentity, error) {
	if g.httpClient.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.httpClient.Timeout)
		defer cancel()
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return model.ExternalIdentity{}, &ProviderError{Provider: model.ProviderGoogle, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return model.ExternalIdentity{}, fmt.Errorf("%w: google userinfo returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("%w: decode google userinfo: %v", ErrInvalidToken, err)
	}

	info.Sub = strings.TrimSpace(info.Sub)
	info.Email = strings.TrimSpace(info.Email)
	if info.Sub == "" || info.Email == "" {
		return model.ExternalIdentity{}, fmt.Errorf("%w: google userinfo missing sub or email", ErrInvalidToken)
	}

	return model.ExternalIdentity{
		Provider:  model.ProviderGoogle,
		SubjectID: info.Sub,
		Email:     info.Email,
	}, nil
}
