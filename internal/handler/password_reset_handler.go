package handler

import (
	"errors"
	"net/http"

	"go-verse-auth/internal/model"
	"go-verse-auth/internal/service"
	"go-verse-auth/pkg/apierror"
)

const (
	msgResetRequested = "Password reset instructions sent"
	msgResetConfirmed = "Password has been reset successfully"
)

type PasswordResetHandler struct {
	service     *service.AuthService
	validator   *RequestValidator
	exposeToken bool
}

// NewPasswordResetHandler builds the reset endpoints. With exposeToken set
// the reset token is echoed back as debug_token instead of being delivered
// out of band.
func NewPasswordResetHandler(service *service.AuthService, validator *RequestValidator, exposeToken bool) *PasswordResetHandler {
	return &PasswordResetHandler{service: service, validator: validator, exposeToken: exposeToken}
}

func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var payload model.PasswordResetRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validator.Validate(payload); err != nil {
		writeError(w, err)
		return
	}

	reset, err := h.service.RequestPasswordReset(r.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			err = apierror.Wrap(err, "NOT_FOUND", "No user found with this email address", http.StatusNotFound)
		}
		writeError(w, err)
		return
	}

	response := model.PasswordResetResponse{Message: msgResetRequested}
	if h.exposeToken {
		response.DebugToken = reset.Token
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *PasswordResetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var payload model.PasswordResetConfirmRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validator.Validate(payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), payload.Token, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: msgResetConfirmed})
}
