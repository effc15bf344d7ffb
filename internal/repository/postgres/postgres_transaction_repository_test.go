package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dealID = "3b1f6a52-2f0e-4c63-8d7e-5a4c2b9e1d10"

func TestTransactionRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("NilTransaction", func(t *testing.T) {
		store, mock := newMock(t)
		err := store.Transactions().Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilTransaction)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		store, mock := newMock(t)
		err := store.Transactions().Create(ctx, &models.Transaction{Amount: decimal.Zero})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success", func(t *testing.T) {
		store, mock := newMock(t)
		deal := &models.Transaction{
			TransactionRef: "ESC1700000000000ABCDEFGHI",
			BuyerID:        "buyer",
			SellerID:       "seller",
			Amount:         decimal.NewFromInt(500),
			Commission:     decimal.NewFromInt(10),
			Status:         models.StatusInEscrow,
			Type:           models.TypeEscrow,
			Description:    "Used laptop",
			PaymentMethod:  models.PaymentWallet,
		}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions`)).
			WithArgs(deal.TransactionRef, deal.BuyerID, deal.SellerID, nil, deal.Amount, deal.Commission,
				deal.Status, deal.Type, deal.Description, deal.PaymentMethod).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(dealID, time.Now()))

		require.NoError(t, store.Transactions().Create(ctx, deal))
		assert.Equal(t, dealID, deal.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_GetForUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("MalformedID", func(t *testing.T) {
		store, mock := newMock(t)
		_, err := store.Transactions().GetForUpdate(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(`FROM transactions t WHERE t.id = \$1 FOR UPDATE`).
			WithArgs(dealID).
			WillReturnError(sql.ErrNoRows)

		_, err := store.Transactions().GetForUpdate(ctx, dealID)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Locked", func(t *testing.T) {
		store, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs(dealID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_ref", "buyer_id", "seller_id", "rider_id", "amount",
				"commission", "status", "type", "description", "payment_method", "created_at", "completed_at"}).
				AddRow(dealID, "ESC1", "buyer", "seller", nil, "500.00", "10.00", "in_escrow", "escrow", "Used laptop", "wallet", now, nil))

		deal, err := store.Transactions().GetForUpdate(ctx, dealID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInEscrow, deal.Status)
		assert.Nil(t, deal.RiderID)
		assert.True(t, deal.PayoutAmount().Equal(decimal.NewFromInt(490)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_UpdateStatus(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE transactions SET status = $2`)).
		WithArgs(dealID, models.StatusCompleted, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, store.Transactions().UpdateStatus(context.Background(), dealID, models.StatusCompleted, &at))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE transactions SET status = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.Transactions().UpdateStatus(context.Background(), dealID, models.StatusCancelled, &at)
	assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_SettleEscrow(t *testing.T) {
	ctx := context.Background()
	at := time.Now()

	t.Run("Released", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`released_at = $3`)).
			WithArgs(dealID, models.EscrowReleased, at, "Delivered").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Transactions().SettleEscrow(ctx, dealID, models.EscrowReleased, at, "Delivered"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CannotReHold", func(t *testing.T) {
		store, mock := newMock(t)
		err := store.Transactions().SettleEscrow(ctx, dealID, models.EscrowHeld, at, "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_Stats(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`COUNT(*) FILTER (WHERE buyer_id = $1)`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}).
			AddRow(4, 2, 1, "700.00", 3, 1, 2, "294.00", 0))

	stats, err := store.Transactions().Stats(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Purchases.Total)
	assert.True(t, stats.Purchases.TotalSpent.Equal(decimal.NewFromInt(700)))
	assert.True(t, stats.Sales.TotalEarned.Equal(decimal.NewFromInt(294)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)

	_, err := store.Notifications().MarkRead(ctx, "1", "u-1")
	assert.ErrorIs(t, err, pkgerrors.ErrNotificationNotFound)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE notifications SET is_read = true`)).
		WithArgs(dealID, "u-1").
		WillReturnError(sql.ErrNoRows)
	_, err = store.Notifications().MarkRead(ctx, dealID, "u-1")
	assert.ErrorIs(t, err, pkgerrors.ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepository_GetLatestPending(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM otp_verifications`)).
		WithArgs("+233241234567", models.OTPRegistration).
		WillReturnError(sql.ErrNoRows)

	_, err := store.OTPs().GetLatestPending(context.Background(), "+233241234567", models.OTPRegistration)
	assert.ErrorIs(t, err, pkgerrors.ErrOTPNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepository_ConsumeAttempt(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`UPDATE otp_verifications SET attempts = attempts + 1
		WHERE id = $1 AND attempts < $2 AND verified = false
		RETURNING attempts`)

	t.Run("Counted", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs("otp-1", models.OTPMaxAttempts).
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))

		n, err := store.OTPs().ConsumeAttempt(ctx, "otp-1", models.OTPMaxAttempts)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Exhausted", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs("otp-1", models.OTPMaxAttempts).
			WillReturnError(sql.ErrNoRows)

		_, err := store.OTPs().ConsumeAttempt(ctx, "otp-1", models.OTPMaxAttempts)
		assert.ErrorIs(t, err, pkgerrors.ErrOTPAttemptsExceeded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOTPRepository_MarkVerified(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`UPDATE otp_verifications SET verified = true, verified_at = $2 WHERE id = $1 AND verified = false`)

	store, mock := newMock(t)
	mock.ExpectExec(query).WithArgs("otp-1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("otp-1", at).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.OTPs().MarkVerified(ctx, "otp-1", at))
	// a second use of the same code finds nothing to update
	assert.ErrorIs(t, store.OTPs().MarkVerified(ctx, "otp-1", at), pkgerrors.ErrOTPNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
