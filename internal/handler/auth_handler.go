package handler

import (
	"net/http"

	"github.com/honeynil/SureSend/internal/models"
	service "github.com/honeynil/SureSend/internal/services"
	"github.com/honeynil/SureSend/internal/validation"
	"github.com/shopspring/decimal"
)

type authUser struct {
	ID            string           `json:"id"`
	Username      string           `json:"username"`
	PhoneNumber   string           `json:"phoneNumber"`
	FullName      string           `json:"fullName"`
	UserType      models.UserType  `json:"userType"`
	Email         *string          `json:"email"`
	IsVerified    bool             `json:"isVerified"`
	KYCStatus     models.KYCStatus `json:"kycStatus"`
	WalletBalance decimal.Decimal  `json:"walletBalance"`
}

func newAuthUser(res *service.AuthResult) authUser {
	u := res.User
	return authUser{
		ID:            u.ID,
		Username:      u.Username,
		PhoneNumber:   u.PhoneNumber,
		FullName:      u.FullName,
		UserType:      u.UserType,
		Email:         u.Email,
		IsVerified:    u.IsVerified,
		KYCStatus:     u.KYCStatus,
		WalletBalance: res.WalletBalance,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req validation.RegisterRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Registration failed")
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		FullName:    req.FullName,
		UserType:    req.UserType,
		Email:       req.Email,
	})
	if err != nil {
		respondError(w, r, err, "Registration failed")
		return
	}

	respond(w, http.StatusCreated, "Registration successful. OTP sent to your phone.", map[string]any{
		"user": map[string]any{
			"id":          user.ID,
			"username":    user.Username,
			"phoneNumber": user.PhoneNumber,
			"fullName":    user.FullName,
			"userType":    user.UserType,
			"email":       user.Email,
		},
		"requiresOTP": true,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Login failed")
		return
	}

	user, err := h.auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		respondError(w, r, err, "Login failed")
		return
	}

	respond(w, http.StatusOK, "Credentials verified. OTP sent to your phone.", map[string]any{
		"phoneNumber": user.PhoneNumber,
		"requiresOTP": true,
	})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req validation.VerifyOTPRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "OTP verification failed")
		return
	}

	res, err := h.auth.VerifyOTP(r.Context(), req.PhoneNumber, req.OTPCode, req.Purpose)
	if err != nil {
		respondError(w, r, err, "OTP verification failed")
		return
	}

	respond(w, http.StatusOK, "Authentication successful", map[string]any{
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
		"expiresAt":    res.Tokens.ExpiresAt,
		"user":         newAuthUser(res),
	})
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req validation.ResendOTPRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to resend OTP")
		return
	}

	if err := h.auth.ResendOTP(r.Context(), req.PhoneNumber, req.Purpose); err != nil {
		respondError(w, r, err, "Failed to resend OTP")
		return
	}
	respond(w, http.StatusOK, "New OTP sent to your phone", nil)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req validation.RefreshRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Token refresh failed")
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, r, err, "Token refresh failed")
		return
	}
	respond(w, http.StatusOK, "Token refreshed successfully", pair)
}

// Logout accepts an optional refresh token in the body so both halves of
// the pair can be revoked.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if r.ContentLength != 0 {
		// a missing or malformed body only skips refresh revocation
		_ = h.decodeLoose(r, &req)
	}

	if err := h.auth.Logout(r.Context(), p, req.RefreshToken); err != nil {
		respondError(w, r, err, "Logout failed")
		return
	}
	respond(w, http.StatusOK, "Logged out successfully", nil)
}
