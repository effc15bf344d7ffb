package models

import "time"

type OTPPurpose string

const (
	OTPRegistration  OTPPurpose = "registration"
	OTPLogin         OTPPurpose = "login"
	OTPTransaction   OTPPurpose = "transaction"
	OTPPasswordReset OTPPurpose = "password_reset"
)

const (
	OTPLength      = 6
	OTPTTL         = 5 * time.Minute
	OTPMaxAttempts = 3
)

type OTPVerification struct {
	ID          string
	PhoneNumber string
	Code        string
	Purpose     OTPPurpose
	ExpiresAt   time.Time
	Verified    bool
	VerifiedAt  *time.Time
	Attempts    int
	CreatedAt   time.Time
}

// Expired reports whether the code can no longer be used at now.
func (o *OTPVerification) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
