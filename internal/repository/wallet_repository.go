package repository

import (
	"context"

	"github.com/honeynil/SureSend/internal/models"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetOverview(ctx context.Context, userID string) (*models.WalletOverview, error)
	// GetByUserIDForUpdate locks the wallet row until the surrounding
	// transaction ends.
	GetByUserIDForUpdate(ctx context.Context, userID string) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal) error
	AddTransaction(ctx context.Context, entry *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID string, filter models.WalletTransactionFilter) ([]models.WalletTransaction, int, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}
