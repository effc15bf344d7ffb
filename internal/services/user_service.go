package service

import (
	"context"
	stderrors "errors"

	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error)
	KYCStatus(ctx context.Context, userID string) (*KYCOverview, error)
	SubmitKYC(ctx context.Context, userID string, docType models.KYCDocumentType, url string) (*models.KYCDocument, error)
}

type Profile struct {
	User     *models.User
	Balance  decimal.Decimal
	Currency string
	Stats    models.DealCounts
}

type KYCOverview struct {
	Status    models.KYCStatus
	Documents []models.KYCDocument
}

type userService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *userService {
	return &userService{store: store}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "GetProfile", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, spanFail(span, err, "user lookup failed")
	}

	p := &Profile{User: user, Balance: decimal.Zero, Currency: models.DefaultCurrency}
	wallet, err := s.store.Wallets().GetOverview(ctx, userID)
	switch {
	case err == nil:
		p.Balance, p.Currency = wallet.Balance, wallet.Currency
	case !stderrors.Is(err, pkgerrors.ErrWalletNotFound):
		return nil, spanFail(span, err, "wallet lookup failed")
	}

	if p.Stats, err = s.store.Transactions().CountDeals(ctx, userID); err != nil {
		return nil, spanFail(span, err, "deal count failed")
	}
	return p, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "UpdateProfile", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	if upd.FullName == nil && upd.Email == nil {
		return nil, spanFail(span, pkgerrors.ErrNoFieldsToUpdate, "nothing to update")
	}
	user, err := s.store.Users().UpdateProfile(ctx, userID, upd)
	if err != nil {
		observability.WithContext(ctx).Error("failed to update profile", "user_id", userID, "error", err)
		return nil, spanFail(span, err, "update failed")
	}
	observability.WithContext(ctx).Info("profile updated", "user_id", userID)
	return user, nil
}

func (s *userService) KYCStatus(ctx context.Context, userID string) (*KYCOverview, error) {
	ctx, span := tracer.Start(ctx, "KYCStatus")
	defer span.End()

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, spanFail(span, err, "user lookup failed")
	}
	docs, err := s.store.Users().ListKYCDocuments(ctx, userID)
	if err != nil {
		return nil, spanFail(span, err, "list documents failed")
	}
	if docs == nil {
		docs = []models.KYCDocument{}
	}
	status := user.KYCStatus
	if status == "" {
		status = models.KYCPending
	}
	return &KYCOverview{Status: status, Documents: docs}, nil
}

func (s *userService) SubmitKYC(ctx context.Context, userID string, docType models.KYCDocumentType, url string) (*models.KYCDocument, error) {
	ctx, span := tracer.Start(ctx, "SubmitKYC", trace.WithAttributes(attribute.String("document_type", string(docType))))
	defer span.End()

	doc := &models.KYCDocument{UserID: userID, DocumentType: docType, DocumentURL: url}
	if err := s.store.Users().CreateKYCDocument(ctx, doc); err != nil {
		observability.WithContext(ctx).Error("failed to submit kyc document", "user_id", userID, "error", err)
		return nil, spanFail(span, err, "submit failed")
	}
	observability.WithContext(ctx).Info("kyc document submitted", "user_id", userID, "document_type", docType)
	return doc, nil
}
