package repository

import (
	"context"
	"time"

	"github.com/honeynil/SureSend/internal/models"
)

// TransactionRepository persists escrow deals together with their escrow
// account, disputes and audit log.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status models.StatusType, completedAt *time.Time) error
	SetRider(ctx context.Context, id, riderID string) error

	CreateEscrowAccount(ctx context.Context, account *models.EscrowAccount) error
	SettleEscrow(ctx context.Context, transactionID string, status models.EscrowStatus, at time.Time, notes string) error

	CreateDispute(ctx context.Context, dispute *models.Dispute) error
	ListDisputes(ctx context.Context, transactionID string) ([]models.Dispute, error)

	AddLog(ctx context.Context, entry *models.TransactionLog) error

	// GetDetails returns ErrTransactionNotFound when participantID is not
	// the buyer, seller or rider of the deal.
	GetDetails(ctx context.Context, id, participantID string) (*models.EscrowDetails, error)
	List(ctx context.Context, userID string, filter models.TransactionFilter) ([]models.TransactionSummary, int, error)
	Stats(ctx context.Context, userID string) (*models.TransactionStats, error)
	CountDeals(ctx context.Context, userID string) (models.DealCounts, error)
}
