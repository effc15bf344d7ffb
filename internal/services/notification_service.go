package service

import (
	"context"

	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type NotificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (*NotificationPage, error)
	MarkRead(ctx context.Context, id, userID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
}

type NotificationPage struct {
	Notifications []models.Notification
	UnreadCount   int
	HasMore       bool
}

type notificationService struct {
	store repository.Store
}

func NewNotificationService(store repository.Store) *notificationService {
	return &notificationService{store: store}
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (*NotificationPage, error) {
	ctx, span := tracer.Start(ctx, "ListNotifications", trace.WithAttributes(attribute.Bool("unread_only", unreadOnly)))
	defer span.End()

	limit = clampLimit(limit, defaultPageSize)
	if offset < 0 {
		offset = 0
	}

	items, err := s.store.Notifications().List(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		observability.WithContext(ctx).Error("failed to list notifications", "user_id", userID, "error", err)
		return nil, spanFail(span, err, "list failed")
	}
	unread, err := s.store.Notifications().CountUnread(ctx, userID)
	if err != nil {
		return nil, spanFail(span, err, "count unread failed")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationPage{
		Notifications: items,
		UnreadCount:   unread,
		HasMore:       len(items) == limit,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	ctx, span := tracer.Start(ctx, "MarkNotificationRead")
	defer span.End()

	n, err := s.store.Notifications().MarkRead(ctx, id, userID)
	if err != nil {
		return nil, spanFail(span, err, "mark read failed")
	}
	return n, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "MarkAllNotificationsRead")
	defer span.End()

	n, err := s.store.Notifications().MarkAllRead(ctx, userID)
	if err != nil {
		observability.WithContext(ctx).Error("failed to mark notifications read", "user_id", userID, "error", err)
		return 0, spanFail(span, err, "mark all read failed")
	}
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "DeleteNotification")
	defer span.End()

	if err := s.store.Notifications().Delete(ctx, id, userID); err != nil {
		return spanFail(span, err, "delete failed")
	}
	observability.WithContext(ctx).Info("notification deleted", "notification_id", id, "user_id", userID)
	return nil
}
