package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type WalletRepository struct {
	q DBTX
}

func NewWalletRepository(q DBTX) *WalletRepository {
	return &WalletRepository{q: q}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *models.Wallet) (err error) {
	ctx, done := track(ctx, "CreateWallet", attribute.String("user_id", wallet.UserID))
	defer done(&err)

	if wallet.Currency == "" {
		wallet.Currency = models.DefaultCurrency
	}
	query := `INSERT INTO wallets (user_id, balance, currency) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	err = r.q.QueryRowContext(ctx, query, wallet.UserID, wallet.Balance, wallet.Currency).
		Scan(&wallet.ID, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		slog.Error("failed to create wallet", "method", "Create", "user_id", wallet.UserID, "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *WalletRepository) GetOverview(ctx context.Context, userID string) (w *models.WalletOverview, err error) {
	ctx, done := track(ctx, "GetWalletOverview", attribute.String("user_id", userID))
	defer done(&err)

	query := `SELECT w.id, w.user_id, w.balance, w.currency, w.created_at, w.updated_at, u.username, u.full_name
		FROM wallets w
		JOIN users u ON u.id = w.user_id
		WHERE w.user_id = $1`
	var o models.WalletOverview
	err = r.q.QueryRowContext(ctx, query, userID).Scan(
		&o.ID, &o.UserID, &o.Balance, &o.Currency, &o.CreatedAt, &o.UpdatedAt, &o.Username, &o.FullName)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrWalletNotFound
	}
	if err != nil {
		slog.Error("failed to get wallet", "method", "GetOverview", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &o, nil
}

func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (w *models.Wallet, err error) {
	ctx, done := track(ctx, "LockWallet", attribute.String("user_id", userID))
	defer done(&err)

	query := `SELECT id, user_id, balance, currency, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE`
	var wallet models.Wallet
	err = r.q.QueryRowContext(ctx, query, userID).Scan(
		&wallet.ID, &wallet.UserID, &wallet.Balance, &wallet.Currency, &wallet.CreatedAt, &wallet.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrWalletNotFound
	}
	if err != nil {
		slog.Error("failed to lock wallet", "method", "GetByUserIDForUpdate", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return &wallet, nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal) (err error) {
	ctx, done := track(ctx, "UpdateWalletBalance", attribute.String("wallet_id", walletID))
	defer done(&err)

	res, err := r.q.ExecContext(ctx, `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`, balance, walletID)
	if err != nil {
		slog.Error("failed to update balance", "method", "UpdateBalance", "wallet_id", walletID, "error", err)
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.ErrWalletNotFound
	}
	return nil
}

func (r *WalletRepository) AddTransaction(ctx context.Context, entry *models.WalletTransaction) (err error) {
	ctx, done := track(ctx, "AddWalletTransaction",
		attribute.String("wallet_id", entry.WalletID),
		attribute.String("type", string(entry.Type)),
	)
	defer done(&err)

	query := `INSERT INTO wallet_transactions
			(wallet_id, amount, type, description, reference, balance_before, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err = r.q.QueryRowContext(ctx, query,
		entry.WalletID, entry.Amount, entry.Type, entry.Description, entry.Reference, entry.BalanceBefore, entry.BalanceAfter,
	).Scan(&entry.ID, &entry.CreatedAt)
	if isUniqueViolation(err) {
		err = fmt.Errorf("duplicate ledger reference %s: %w", entry.Reference, pkgerrors.ErrInvalidReference)
		return err
	}
	if err != nil {
		slog.Error("failed to add wallet transaction", "method", "AddTransaction", "wallet_id", entry.WalletID, "error", err)
		return fmt.Errorf("failed to add wallet transaction: %w", err)
	}
	return nil
}

const walletHistoryFilter = `w.user_id = $1
	AND ($2::text IS NULL OR wt.type = $2)
	AND ($3::timestamptz IS NULL OR wt.created_at >= $3)
	AND ($4::timestamptz IS NULL OR wt.created_at <= $4)`

// ListTransactions returns one page of the ledger, newest first, and the
// number of entries matching the same filter.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID string, filter models.WalletTransactionFilter) (entries []models.WalletTransaction, total int, err error) {
	ctx, done := track(ctx, "ListWalletTransactions", attribute.String("user_id", userID))
	defer done(&err)

	args := []any{userID, nullString(string(filter.Type)), filter.StartDate, filter.EndDate}

	countQuery := `SELECT COUNT(*) FROM wallet_transactions wt
		JOIN wallets w ON w.id = wt.wallet_id
		WHERE ` + walletHistoryFilter
	if err = r.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		slog.Error("failed to count wallet transactions", "method", "ListTransactions", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("failed to count wallet transactions: %w", err)
	}

	query := `SELECT wt.id, wt.wallet_id, wt.amount, wt.type, wt.description, wt.reference,
			wt.balance_before, wt.balance_after, wt.created_at
		FROM wallet_transactions wt
		JOIN wallets w ON w.id = wt.wallet_id
		WHERE ` + walletHistoryFilter + `
		ORDER BY wt.created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := r.q.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		slog.Error("failed to list wallet transactions", "method", "ListTransactions", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	entries = []models.WalletTransaction{}
	for rows.Next() {
		var e models.WalletTransaction
		if err = rows.Scan(&e.ID, &e.WalletID, &e.Amount, &e.Type, &e.Description, &e.Reference,
			&e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate wallet transactions: %w", err)
	}
	return entries, total, nil
}

func (r *WalletRepository) ReferenceExists(ctx context.Context, reference string) (exists bool, err error) {
	ctx, done := track(ctx, "LedgerReferenceExists")
	defer done(&err)

	query := `SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE reference = $1)`
	if err = r.q.QueryRowContext(ctx, query, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return exists, nil
}
