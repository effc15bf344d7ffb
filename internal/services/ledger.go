package service

import (
	"context"
	"fmt"

	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
)

// movement is one ledger write, counted once its transaction commits.
type movement struct {
	entry  *models.WalletTransaction
	reason string
}

// postEntry moves amount on a wallet locked by the caller and appends the
// matching ledger row. wallet.Balance is updated in place.
func postEntry(ctx context.Context, tx repository.Store, wallet *models.Wallet, typ models.EntryType, amount decimal.Decimal, description, reference string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("ledger amount must be positive: %w", pkgerrors.ErrInvalidInput)
	}

	before := wallet.Balance
	after := before.Add(amount)
	if typ == models.EntryDebit {
		if before.LessThan(amount) {
			return nil, pkgerrors.ErrInsufficientFunds
		}
		after = before.Sub(amount)
	}

	if err := tx.Wallets().UpdateBalance(ctx, wallet.ID, after); err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}
	entry := &models.WalletTransaction{
		WalletID:      wallet.ID,
		Amount:        amount,
		Type:          typ,
		Description:   description,
		Reference:     reference,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if err := tx.Wallets().AddTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	wallet.Balance = after
	return entry, nil
}

func debit(ctx context.Context, tx repository.Store, wallet *models.Wallet, amount decimal.Decimal, description, reference string) (*models.WalletTransaction, error) {
	return postEntry(ctx, tx, wallet, models.EntryDebit, amount, description, reference)
}

func credit(ctx context.Context, tx repository.Store, wallet *models.Wallet, amount decimal.Decimal, description, reference string) (*models.WalletTransaction, error) {
	return postEntry(ctx, tx, wallet, models.EntryCredit, amount, description, reference)
}

func recordMovements(moves ...movement) {
	for _, m := range moves {
		observability.LedgerEntries.WithLabelValues(string(m.entry.Type), m.reason).Inc()
	}
}

func lockWallet(ctx context.Context, tx repository.Store, userID string) (*models.Wallet, error) {
	w, err := tx.Wallets().GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet of user %s: %w", userID, err)
	}
	return w, nil
}

// money formats an amount the way it appears in notifications.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
