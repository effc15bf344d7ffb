package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const notificationColumns = `id, user_id, title, message, type, is_read, created_at, read_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt, &n.ReadAt); err != nil {
		return nil, err
	}
	return &n, nil
}

type NotificationRepository struct {
	q DBTX
}

func NewNotificationRepository(q DBTX) *NotificationRepository {
	return &NotificationRepository{q: q}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (err error) {
	ctx, done := track(ctx, "CreateNotification", attribute.String("type", string(n.Type)))
	defer done(&err)

	query := `INSERT INTO notifications (user_id, title, message, type) VALUES ($1, $2, $3, $4)
		RETURNING id, is_read, created_at`
	err = r.q.QueryRowContext(ctx, query, n.UserID, n.Title, n.Message, n.Type).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		slog.Error("failed to create notification", "method", "Create", "user_id", n.UserID, "error", err)
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (list []models.Notification, err error) {
	ctx, done := track(ctx, "ListNotifications", attribute.String("user_id", userID))
	defer done(&err)

	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND (NOT $2::boolean OR is_read = false)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.q.QueryContext(ctx, query, userID, unreadOnly, limit, offset)
	if err != nil {
		slog.Error("failed to list notifications", "method", "List", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	list = []models.Notification{}
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan notification: %w", scanErr)
			return nil, err
		}
		list = append(list, *n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return list, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (count int, err error) {
	ctx, done := track(ctx, "CountUnreadNotifications")
	defer done(&err)

	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	if err = r.q.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (n *models.Notification, err error) {
	ctx, done := track(ctx, "MarkNotificationRead")
	defer done(&err)

	if !isUUID(id) {
		return nil, pkgerrors.ErrNotificationNotFound
	}

	query := `UPDATE notifications SET is_read = true, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING ` + notificationColumns
	n, err = scanNotification(r.q.QueryRowContext(ctx, query, id, userID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotificationNotFound
	}
	if err != nil {
		slog.Error("failed to mark notification read", "method", "MarkRead", "notification_id", id, "error", err)
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (updated int64, err error) {
	ctx, done := track(ctx, "MarkAllNotificationsRead")
	defer done(&err)

	res, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = true, read_at = NOW() WHERE user_id = $1 AND is_read = false`, userID)
	if err != nil {
		slog.Error("failed to mark notifications read", "method", "MarkAllRead", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	updated, _ = res.RowsAffected()
	return updated, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id, userID string) (err error) {
	ctx, done := track(ctx, "DeleteNotification")
	defer done(&err)

	if !isUUID(id) {
		return pkgerrors.ErrNotificationNotFound
	}

	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		slog.Error("failed to delete notification", "method", "Delete", "notification_id", id, "error", err)
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.ErrNotificationNotFound
	}
	return nil
}
