package mtAuth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	mtAuth "github.com/MrEthical07/mtAuth"
)

func TestResultFromError(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{mtAuth.ErrInvalidCredentials, mtAuth.CodeInvalidCredentials, http.StatusUnauthorized},
		{mtAuth.ErrAccountLocked, mtAuth.CodeAccountLocked, http.StatusLocked},
		{mtAuth.ErrInvalidOrExpiredToken, mtAuth.CodeInvalidToken, http.StatusUnauthorized},
		{mtAuth.ErrInvalidTwoFactorCode, mtAuth.CodeInvalid2FACode, http.StatusUnauthorized},
		{mtAuth.ErrTwoFactorNotSetUp, mtAuth.CodeInvalid2FACode, http.StatusUnauthorized},
		{mtAuth.ErrUserAlreadyExists, mtAuth.CodeUserExists, http.StatusConflict},
		{mtAuth.ErrEmailAlreadyExists, mtAuth.CodeEmailExists, http.StatusConflict},
		{mtAuth.ErrInvalidEmailFormat, mtAuth.CodeInvalidEmail, http.StatusBadRequest},
		{mtAuth.ErrInvalidUsernameFormat, mtAuth.CodeInvalidUsername, http.StatusBadRequest},
		{mtAuth.ErrTwoFactorAlreadyEnabled, mtAuth.Code2FAAlreadyEnabled, http.StatusBadRequest},
		{mtAuth.ErrTwoFactorNotEnabled, mtAuth.Code2FANotEnabled, http.StatusBadRequest},
		{mtAuth.ErrNotFound, mtAuth.CodeNotFound, http.StatusNotFound},
		{mtAuth.ErrLoginRateLimited, mtAuth.CodeRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("register: %w", mtAuth.ErrRateLimited), mtAuth.CodeRateLimited, http.StatusTooManyRequests},
		{mtAuth.ErrInternal, mtAuth.CodeInternal, http.StatusInternalServerError},
		{errors.New("connection refused"), mtAuth.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			res := mtAuth.ResultFromError(tt.err)
			if res.Success || res.Code != tt.code || res.HTTPStatus != tt.status {
				t.Fatalf("expected %s/%d, got %+v", tt.code, tt.status, res)
			}
		})
	}

	if res := mtAuth.ResultFromError(nil); !res.Success || res.HTTPStatus != http.StatusOK {
		t.Fatalf("nil error must render as success, got %+v", res)
	}
}

func TestResultHidesInternalCause(t *testing.T) {
	res := mtAuth.ResultFromError(errors.New("pq: password authentication failed for user admin"))
	if res.Message != "an internal error occurred" {
		t.Fatalf("internal cause leaked: %q", res.Message)
	}
	if !mtAuth.IsInternal(errors.New("boom")) || mtAuth.IsInternal(mtAuth.ErrAccountLocked) || mtAuth.IsInternal(nil) {
		t.Fatalf("IsInternal misclassified")
	}
}

func TestChangePasswordResult(t *testing.T) {
	res := mtAuth.ChangePasswordResult(mtAuth.ErrInvalidCredentials)
	if res.Code != mtAuth.CodeWrongPassword || res.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("unexpected result %+v", res)
	}
	if mtAuth.ChangePasswordResult(mtAuth.ErrWeakPassword).Code != mtAuth.CodeWeakPassword {
		t.Fatalf("other errors must fall through to ResultFromError")
	}
}

func TestWeakPasswordViolationsRendered(t *testing.T) {
	h := newHarness(t, nil, nil)
	_, err := h.engine.Register(context.Background(), "weakling", "weak@example.com", "abc")
	res := mtAuth.ResultFromError(err)
	if res.Code != mtAuth.CodeWeakPassword || len(res.Violations) == 0 {
		t.Fatalf("expected violations in result, got %+v", res)
	}
}
