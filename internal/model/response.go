package model

type ErrorResponse struct {
	Error *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type RegisterResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type GoogleConfigResponse struct {
	ClientID    string `json:"clientId"`
	RedirectURI string `json:"redirectUri"`
}

type FacebookConfigResponse struct {
	AppID       string `json:"appId"`
	RedirectURI string `json:"redirectUri"`
}

type PasswordResetResponse struct {
	Message    string `json:"message"`
	DebugToken string `json:"debug_token,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
