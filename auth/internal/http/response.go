package http_auth

import (
	"encoding/json"
	"net/http"
)

// Machine readable codes returned in the envelope.
const (
	CodeOK               = "OK"
	CodeLoginSuccess     = "LOGIN_SUCCESS"
	CodeRefreshSuccess   = "REFRESH_SUCCESS"
	CodeLogoutSuccess    = "LOGOUT_SUCCESS"
	CodeTokenValid       = "TOKEN_VALID"
	CodeProfileSuccess   = "PROFILE_GET_SUCCESS"
	CodeBlockStatus      = "BLOCK_STATUS"
	CodeBlockApplied     = "BLOCK_APPLIED"
	CodeBlockLifted      = "BLOCK_LIFTED"
	CodeUserActivated    = "USER_ACTIVATED"
	CodeUserDeactivated  = "USER_DEACTIVATED"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenInvalid     = "TOKEN_INVALID"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeUserBlocked      = "USER_BLOCKED"
	CodeUserInactive     = "USER_INACTIVE"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeLoginFailed      = "LOGIN_FAILED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeTooManyAttempts  = "TOO_MANY_ATTEMPTS"
	CodeLogoutFailed     = "LOGOUT_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Status  int         `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	resp.Status = status

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func OK(w http.ResponseWriter, code, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Code: code, Message: message, Data: data})
}

func Error(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Code: code, Message: message})
}
