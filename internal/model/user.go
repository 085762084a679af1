package model

import (
	"strings"
	"time"
)

type OAuthProvider string

const (
	ProviderGoogle   OAuthProvider = "google"
	ProviderFacebook OAuthProvider = "facebook"
)

func (p OAuthProvider) Valid() bool {
	return p == ProviderGoogle || p == ProviderFacebook
}

// User is the canonical identity record. HashedPassword is empty for
// accounts created through an identity provider.
type User struct {
	ID             string        `json:"-" db:"id"`
	Username       string        `json:"username" db:"username"`
	Email          string        `json:"email" db:"email"`
	HashedPassword string        `json:"-" db:"hashed_password"`
	OAuthProvider  OAuthProvider `json:"oauth_provider,omitempty" db:"oauth_provider"`
	OAuthID        string        `json:"oauth_id,omitempty" db:"oauth_id"`
	CreatedAt      time.Time     `json:"-" db:"created_at"`
	UpdatedAt      time.Time     `json:"-" db:"updated_at"`
}

func (u User) HasPassword() bool {
	return u.HashedPassword != ""
}

// ExternalIdentity is what a provider vouches for after verifying an
// access token.
type ExternalIdentity struct {
	Provider  OAuthProvider
	SubjectID string
	Email     string
}

// OAuthUsername derives the local username for a provider-backed account.
func OAuthUsername(provider OAuthProvider, subjectID string) string {
	return string(provider) + "_" + subjectID
}

// HasOAuthPrefix reports whether username has the shape OAuthUsername
// produces for any known provider. Comparison is case-insensitive.
func HasOAuthPrefix(username string) bool {
	lower := strings.ToLower(strings.TrimSpace(username))
	for _, provider := range []OAuthProvider{ProviderGoogle, ProviderFacebook} {
		if strings.HasPrefix(lower, string(provider)+"_") {
			return true
		}
	}
	return false
}

type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

type SocialAuth struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type ResetToken struct {
	Token     string
	ExpiresAt time.Time
}

type ProviderConfig struct {
	ClientID    string
	RedirectURI string
}
