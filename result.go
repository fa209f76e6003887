package mtAuth

import (
	"errors"
	"net/http"
)

// Stable boundary codes rendered by ResultFromError.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeWrongPassword      = "WRONG_PASSWORD"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalid2FACode     = "INVALID_2FA_CODE"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeUserExists         = "USER_EXISTS"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeInvalidUsername    = "INVALID_USERNAME"
	Code2FAAlreadyEnabled  = "2FA_ALREADY_ENABLED"
	Code2FANotEnabled      = "2FA_NOT_ENABLED"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Result is the transport-neutral rendering of an operation outcome.
type Result struct {
	Success    bool     `json:"success"`
	Code       string   `json:"code,omitempty"`
	Message    string   `json:"message,omitempty"`
	HTTPStatus int      `json:"-"`
	Violations []string `json:"violations,omitempty"`
}

type errorMapping struct {
	err     error
	code    string
	message string
	status  int
}

// Order matters only for wrapped chains; every sentinel is distinct.
var errorMappings = []errorMapping{
	{ErrInvalidCredentials, CodeInvalidCredentials, "invalid email or password", http.StatusUnauthorized},
	{ErrAccountLocked, CodeAccountLocked, "account temporarily locked", http.StatusLocked},
	{ErrInvalidOrExpiredToken, CodeInvalidToken, "invalid or expired token", http.StatusUnauthorized},
	{ErrInvalidTwoFactorCode, CodeInvalid2FACode, "invalid two-factor code", http.StatusUnauthorized},
	{ErrTwoFactorNotSetUp, CodeInvalid2FACode, "invalid two-factor code", http.StatusUnauthorized},
	{ErrWeakPassword, CodeWeakPassword, "password does not meet requirements", http.StatusBadRequest},
	{ErrUserAlreadyExists, CodeUserExists, "username already exists", http.StatusConflict},
	{ErrEmailAlreadyExists, CodeEmailExists, "email already exists", http.StatusConflict},
	{ErrInvalidEmailFormat, CodeInvalidEmail, "invalid email format", http.StatusBadRequest},
	{ErrInvalidUsernameFormat, CodeInvalidUsername, "username must be 3-30 characters of letters, digits or underscore", http.StatusBadRequest},
	{ErrTwoFactorAlreadyEnabled, Code2FAAlreadyEnabled, "two-factor authentication is already enabled", http.StatusBadRequest},
	{ErrTwoFactorNotEnabled, Code2FANotEnabled, "two-factor authentication is not enabled", http.StatusBadRequest},
	{ErrNotFound, CodeNotFound, "not found", http.StatusNotFound},
	{ErrLoginRateLimited, CodeRateLimited, "too many attempts, try again later", http.StatusTooManyRequests},
	{ErrRateLimited, CodeRateLimited, "too many attempts, try again later", http.StatusTooManyRequests},
}

// ResultFromError maps err to a stable code, message and HTTP status.
// A nil error is a success. Anything unmapped is INTERNAL_ERROR with a
// generic message; callers log the cause.
func ResultFromError(err error) Result {
	if err == nil {
		return Result{Success: true, HTTPStatus: http.StatusOK}
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		r := Result{Code: m.code, Message: m.message, HTTPStatus: m.status}
		var weak *WeakPasswordError
		if errors.As(err, &weak) {
			r.Violations = weak.Messages()
		}
		return r
	}
	return Result{
		Code:       CodeInternal,
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// ChangePasswordResult renders the outcome of ChangePassword, where a wrong
// current password is reported as WRONG_PASSWORD instead of the login code.
func ChangePasswordResult(err error) Result {
	if errors.Is(err, ErrInvalidCredentials) {
		return Result{
			Code:       CodeWrongPassword,
			Message:    "current password incorrect",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	return ResultFromError(err)
}

// IsInternal reports whether err renders as INTERNAL_ERROR.
func IsInternal(err error) bool {
	return err != nil && ResultFromError(err).Code == CodeInternal
}
