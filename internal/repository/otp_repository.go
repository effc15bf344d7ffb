package repository

import (
	"context"
	"time"

	"github.com/honeynil/SureSend/internal/models"
)

type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTPVerification) error
	// GetLatestPending returns the newest unverified code for phone and purpose.
	GetLatestPending(ctx context.Context, phone string, purpose models.OTPPurpose) (*models.OTPVerification, error)
	// ConsumeAttempt counts one verification attempt against a pending code.
	// It fails with ErrOTPAttemptsExceeded once maxAttempts are used.
	ConsumeAttempt(ctx context.Context, id string, maxAttempts int) (int, error)
	// MarkVerified fails with ErrOTPNotFound when the code was already used.
	MarkVerified(ctx context.Context, id string, at time.Time) error
}
