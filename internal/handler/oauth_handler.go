package handler

import (
	"errors"
	"net/http"
	"strings"

	"go-verse-auth/internal/model"
	"go-verse-auth/internal/service"
	"go-verse-auth/pkg/apierror"
)

type OAuthHandler struct {
	service *service.AuthService
}

func NewOAuthHandler(service *service.AuthService) *OAuthHandler {
	return &OAuthHandler{service: service}
}

func (h *OAuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, model.ProviderGoogle, "Google authentication failed")
}

func (h *OAuthHandler) Facebook(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, model.ProviderFacebook, "Facebook authentication failed")
}

func (h *OAuthHandler) GoogleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.ProviderConfig(string(model.ProviderGoogle))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.GoogleConfigResponse{ClientID: cfg.ClientID, RedirectURI: cfg.RedirectURI})
}

func (h *OAuthHandler) FacebookConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.ProviderConfig(string(model.ProviderFacebook))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.FacebookConfigResponse{AppID: cfg.ClientID, RedirectURI: cfg.RedirectURI})
}

func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request, provider model.OAuthProvider, failure string) {
	var payload model.SocialAuthRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(payload.Token) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "Token is required", "token", http.StatusBadRequest))
		return
	}

	auth, err := h.service.OAuthLogin(r.Context(), string(provider), payload.Token)
	if err != nil {
		if errors.Is(err, model.ErrVerificationFailed) {
			err = apierror.Wrap(err, "VERIFICATION_FAILED", failure, http.StatusBadRequest)
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, auth)
}
