package service

import (
	"context"
	"fmt"

	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("suresend-service")

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 1_000_000
)

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// clampPage keeps page within [1, maxPage] so the offset cannot overflow.
func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > maxPage {
		return maxPage
	}
	return page
}

func spanFail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}

func notify(ctx context.Context, tx repository.Store, userID, title, message string, typ models.NotificationType) error {
	n := &models.Notification{UserID: userID, Title: title, Message: message, Type: typ}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("failed to notify user %s: %w", userID, err)
	}
	return nil
}

func withDetail(base, detail string) string {
	if detail == "" {
		return base
	}
	return base + ": " + detail
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
