package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	facebookOAuth "golang.org/x/oauth2/facebook"

	"go-verse-auth/internal/model"
)

const DefaultFacebookGraphURL = "https://graph.facebook.com/me"

type FacebookConfig struct {
	AppID       string
	FrontendURL string
	GraphURL    string
}

// Facebook verifies Facebook access tokens against the Graph API "me" node.
type Facebook struct {
	cfg        *oauth2.Config
	graphURL   string
	httpClient *http.Client
}

type facebookMe struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type facebookErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func NewFacebook(cfg FacebookConfig, httpClient *http.Client) *Facebook {
	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = DefaultFacebookGraphURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	return &Facebook{
		cfg: &oauth2.Config{
			ClientID:    cfg.AppID,
			Endpoint:    facebookOAuth.Endpoint,
			Scopes:      []string{"email", "public_profile"},
			RedirectURL: callbackURL(cfg.FrontendURL, model.ProviderFacebook),
		},
		graphURL:   graphURL,
		httpClient: httpClient,
	}
}

func (f *Facebook) Provider() model.OAuthProvider {
	return model.ProviderFacebook
}

func (f *Facebook) OAuth2Config() *oauth2.Config {
	return f.cfg
}

func (f *Facebook) Verify(ctx context.Context, accessToken string) (model.ExternalIdentity, error) {
	endpoint, err := url.Parse(f.graphURL)
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("parse graph url: %w", err)
	}
	query := endpoint.Query()
	query.Set("fields", "id,name,email")
	query.Set("access_token", accessToken)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		// url.Error would echo the access token back through the message.
		msg := "request failed"
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			msg = urlErr.Err.Error()
		}
		return model.ExternalIdentity{}, &ProviderError{Provider: model.ProviderFacebook, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.ExternalIdentity{}, &ProviderError{Provider: model.ProviderFacebook, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("graph api returned status %d", resp.StatusCode)
		var parsed facebookErrorBody
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			msg = fmt.Sprintf("%s (status %d)", parsed.Error.Message, resp.StatusCode)
		}
		return model.ExternalIdentity{}, &ProviderError{Provider: model.ProviderFacebook, Message: msg}
	}

	var me facebookMe
	if err := json.Unmarshal(body, &me); err != nil {
		return model.ExternalIdentity{}, &ProviderError{Provider: model.ProviderFacebook, Message: "malformed graph api response", Err: err}
	}

	me.ID = strings.TrimSpace(me.ID)
	if me.ID == "" {
		return model.ExternalIdentity{}, &ProviderError{Provider: model.ProviderFacebook, Message: "graph api response missing id"}
	}

	email := strings.TrimSpace(me.Email)
	if email == "" {
		email = me.ID + "@facebook.com"
	}

	return model.ExternalIdentity{
		Provider:  model.ProviderFacebook,
		SubjectID: me.ID,
		Email:     email,
	}, nil
}
