package repository

import (
	"context"
	"time"

	"github.com/honeynil/SureSend/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIdentifier matches either the username or the phone number.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetActiveByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrPhone(ctx context.Context, username, phone string) (bool, error)
	MarkVerified(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	Search(ctx context.Context, term string, excludeRiders bool, limit int) ([]models.UserSearchResult, error)
	CreateKYCDocument(ctx context.Context, doc *models.KYCDocument) error
	ListKYCDocuments(ctx context.Context, userID string) ([]models.KYCDocument, error)
}
