package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

type OTPRepository struct {
	q DBTX
}

func NewOTPRepository(q DBTX) *OTPRepository {
	return &OTPRepository{q: q}
}

func (r *OTPRepository) Create(ctx context.Context, otp *models.OTPVerification) (err error) {
	ctx, done := track(ctx, "CreateOTP", attribute.String("purpose", string(otp.Purpose)))
	defer done(&err)

	query := `INSERT INTO otp_verifications (phone_number, otp_code, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err = r.q.QueryRowContext(ctx, query, otp.PhoneNumber, otp.Code, otp.Purpose, otp.ExpiresAt).
		Scan(&otp.ID, &otp.CreatedAt)
	if err != nil {
		slog.Error("failed to store otp", "method", "Create", "purpose", otp.Purpose, "error", err)
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

func (r *OTPRepository) GetLatestPending(ctx context.Context, phone string, purpose models.OTPPurpose) (otp *models.OTPVerification, err error) {
	ctx, done := track(ctx, "GetLatestOTP", attribute.String("purpose", string(purpose)))
	defer done(&err)

	query := `SELECT id, phone_number, otp_code, purpose, expires_at, verified, verified_at, attempts, created_at
		FROM otp_verifications
		WHERE phone_number = $1 AND purpose = $2 AND verified = false
		ORDER BY created_at DESC
		LIMIT 1`
	var o models.OTPVerification
	err = r.q.QueryRowContext(ctx, query, phone, purpose).Scan(
		&o.ID, &o.PhoneNumber, &o.Code, &o.Purpose, &o.ExpiresAt, &o.Verified, &o.VerifiedAt, &o.Attempts, &o.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrOTPNotFound
	}
	if err != nil {
		slog.Error("failed to get otp", "method", "GetLatestPending", "purpose", purpose, "error", err)
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	return &o, nil
}

func (r *OTPRepository) ConsumeAttempt(ctx context.Context, id string, maxAttempts int) (attempts int, err error) {
	ctx, done := track(ctx, "ConsumeOTPAttempt")
	defer done(&err)

	query := `UPDATE otp_verifications SET attempts = attempts + 1
		WHERE id = $1 AND attempts < $2 AND verified = false
		RETURNING attempts`
	err = r.q.QueryRowContext(ctx, query, id, maxAttempts).Scan(&attempts)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, pkgerrors.ErrOTPAttemptsExceeded
	}
	if err != nil {
		slog.Error("failed to count otp attempt", "method", "ConsumeAttempt", "otp_id", id, "error", err)
		return 0, fmt.Errorf("failed to count otp attempt: %w", err)
	}
	return attempts, nil
}

func (r *OTPRepository) MarkVerified(ctx context.Context, id string, at time.Time) (err error) {
	ctx, done := track(ctx, "MarkOTPVerified")
	defer done(&err)

	res, err := r.q.ExecContext(ctx,
		`UPDATE otp_verifications SET verified = true, verified_at = $2 WHERE id = $1 AND verified = false`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}
	if n == 0 {
		return pkgerrors.ErrOTPNotFound
	}
	return nil
}
