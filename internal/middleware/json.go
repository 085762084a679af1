package middleware

import (
	"encoding/json"
	"net/http"

	"go-verse-auth/internal/model"
)

func writeErrorBody(w http.ResponseWriter, status int, code string, message string, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: &model.APIError{Code: code, Message: message, Details: details},
	})
}
