package service

import (
	"context"
	"strings"

	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSearchLimit = 10
	minSearchLength    = 2
)

type TransactionService interface {
	List(ctx context.Context, userID string, q ListTransactionsQuery) (*TransactionPage, error)
	Stats(ctx context.Context, userID string) (*models.TransactionStats, error)
	SearchUsers(ctx context.Context, term string, excludeRiders bool, limit int) ([]models.UserSearchResult, error)
}

type ListTransactionsQuery struct {
	Role   models.ParticipantRole
	Status models.StatusType
	Type   models.TransactionType
	Page   int
	Limit  int
}

type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

type TransactionPage struct {
	Transactions []models.TransactionSummary
	Pagination   Pagination
}

type transactionService struct {
	store repository.Store
}

func NewTransactionService(store repository.Store) *transactionService {
	return &transactionService{store: store}
}

func (s *transactionService) List(ctx context.Context, userID string, q ListTransactionsQuery) (*TransactionPage, error) {
	ctx, span := tracer.Start(ctx, "ListTransactions", trace.WithAttributes(
		attribute.String("role", string(q.Role)),
		attribute.String("status", string(q.Status)),
	))
	defer span.End()

	q.Page = clampPage(q.Page)
	q.Limit = clampLimit(q.Limit, defaultPageSize)

	items, total, err := s.store.Transactions().List(ctx, userID, models.TransactionFilter{
		Role:   q.Role,
		Status: q.Status,
		Type:   q.Type,
		Limit:  q.Limit,
		Offset: (q.Page - 1) * q.Limit,
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to list transactions", "user_id", userID, "error", err)
		return nil, spanFail(span, err, "list failed")
	}
	if items == nil {
		items = []models.TransactionSummary{}
	}

	return &TransactionPage{
		Transactions: items,
		Pagination: Pagination{
			CurrentPage:  q.Page,
			TotalPages:   (total + q.Limit - 1) / q.Limit,
			TotalItems:   total,
			ItemsPerPage: q.Limit,
		},
	}, nil
}

func (s *transactionService) Stats(ctx context.Context, userID string) (*models.TransactionStats, error) {
	ctx, span := tracer.Start(ctx, "TransactionStats")
	defer span.End()

	stats, err := s.store.Transactions().Stats(ctx, userID)
	if err != nil {
		observability.WithContext(ctx).Error("failed to compute transaction stats", "user_id", userID, "error", err)
		return nil, spanFail(span, err, "stats failed")
	}
	return stats, nil
}

func (s *transactionService) SearchUsers(ctx context.Context, term string, excludeRiders bool, limit int) ([]models.UserSearchResult, error) {
	ctx, span := tracer.Start(ctx, "SearchUsers", trace.WithAttributes(attribute.Bool("exclude_riders", excludeRiders)))
	defer span.End()

	term = strings.TrimSpace(term)
	if len([]rune(term)) < minSearchLength {
		return nil, spanFail(span, pkgerrors.ErrSearchTooShort, "search too short")
	}

	users, err := s.store.Users().Search(ctx, term, excludeRiders, clampLimit(limit, defaultSearchLimit))
	if err != nil {
		observability.WithContext(ctx).Error("failed to search users", "error", err)
		return nil, spanFail(span, err, "search failed")
	}
	if users == nil {
		users = []models.UserSearchResult{}
	}
	return users, nil
}
