package httpapi

import (
	"net/http"
	"time"

	mtAuth "github.com/MrEthical07/mtAuth"
)

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	TempToken string `json:"temp_token" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

type tempTokenRequest struct {
	TempToken string `json:"temp_token" validate:"required"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type sessionResponse struct {
	Success     bool       `json:"success"`
	Requires2FA bool       `json:"requires_2fa"`
	TempToken   string     `json:"temp_token,omitempty"`
	Token       string     `json:"token,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
}

type accountResponse struct {
	Success bool            `json:"success"`
	User    *mtAuth.Account `json:"user"`
}

type setupResponse struct {
	Success     bool     `json:"success"`
	Secret      string   `json:"secret"`
	QRURI       string   `json:"qr_uri"`
	ManualKey   string   `json:"manual_entry_key"`
	BackupCodes []string `json:"backup_codes"`
}

type backupCodesResponse struct {
	Success     bool     `json:"success"`
	BackupCodes []string `json:"backup_codes"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func loginResponse(res *mtAuth.LoginResult) sessionResponse {
	if res.TwoFactorRequired {
		return sessionResponse{Success: true, Requires2FA: true, TempToken: res.PreAuthToken}
	}
	return sessionResponse{
		Success:   true,
		Token:     res.SessionToken,
		ExpiresAt: &res.ExpiresAt,
		UserID:    res.UserID,
	}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{Success: true, User: acct})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *handler) verifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.VerifySecondFactor(r.Context(), req.TempToken, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *handler) sendSecondFactorCode(w http.ResponseWriter, r *http.Request) {
	var req tempTokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.EmailSecondFactorCode(r.Context(), req.TempToken); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "code sent"})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "if the email is registered, a reset link has been sent",
	})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.RedeemPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "password has been reset"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := mtAuth.SessionClaimsFromContext(r.Context())
	acct, err := h.auth.Account(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Success: true, User: acct})
}

func (h *handler) setupTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims, _ := mtAuth.SessionClaimsFromContext(r.Context())
	setup, err := h.auth.SetupTwoFactor(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setupResponse{
		Success:     true,
		Secret:      setup.Secret,
		QRURI:       setup.ProvisioningURI,
		ManualKey:   setup.ManualEntryKey,
		BackupCodes: setup.BackupCodes,
	})
}

func (h *handler) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	claims, _ := mtAuth.SessionClaimsFromContext(r.Context())
	if err := h.auth.EnableTwoFactor(r.Context(), claims.UserID, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "two-factor authentication enabled"})
}

func (h *handler) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	claims, _ := mtAuth.SessionClaimsFromContext(r.Context())
	if err := h.auth.DisableTwoFactor(r.Context(), claims.UserID, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "two-factor authentication disabled"})
}

func (h *handler) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	claims, _ := mtAuth.SessionClaimsFromContext(r.Context())
	codes, err := h.auth.RegenerateBackupCodes(r.Context(), claims.UserID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backupCodesResponse{Success: true, BackupCodes: codes})
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	claims, _ := mtAuth.SessionClaimsFromContext(r.Context())
	err := h.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeResult(w, mtAuth.ChangePasswordResult(err))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "password changed"})
}
