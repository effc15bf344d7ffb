package memory

import (
	"context"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, n *models.Notification) error {
	return r.s.write(func(txn *memdb.Txn) error {
		n.ID = newID()
		n.IsRead = false
		n.CreatedAt = time.Now().UTC()
		return txn.Insert(tableNotifications, &notificationRow{Notification: *n, ordered: r.s.stamp()})
	})
}

func userNotifications(txn *memdb.Txn, userID string) ([]*notificationRow, error) {
	rows, err := all[notificationRow](txn, tableNotifications, "user_id", userID)
	if err != nil {
		return nil, err
	}
	newestFirst(rows)
	return rows, nil
}

func (r *notificationRepo) List(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var matched []models.Notification
	err := r.s.read(func(txn *memdb.Txn) error {
		rows, err := userNotifications(txn, userID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if !unreadOnly || !row.IsRead {
				matched = append(matched, row.Notification)
			}
		}
		return nil
	})
	return append([]models.Notification{}, page(matched, limit, offset)...), err
}

func (r *notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	var count int
	err := r.s.read(func(txn *memdb.Txn) error {
		rows, err := userNotifications(txn, userID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if !row.IsRead {
				count++
			}
		}
		return nil
	})
	return count, err
}

func owned(txn *memdb.Txn, id, userID string) (*notificationRow, error) {
	row, err := first[notificationRow](txn, tableNotifications, "id", id)
	if err != nil {
		return nil, err
	}
	if row == nil || row.UserID != userID {
		return nil, pkgerrors.ErrNotificationNotFound
	}
	return row, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, userID string) (*models.Notification, error) {
	var out models.Notification
	err := r.s.write(func(txn *memdb.Txn) error {
		row, err := owned(txn, id, userID)
		if err != nil {
			return err
		}
		out = row.Notification
		if row.IsRead {
			return nil
		}
		now := time.Now().UTC()
		updated := *row
		updated.IsRead = true
		updated.ReadAt = &now
		out = updated.Notification
		return txn.Insert(tableNotifications, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var updated int64
	err := r.s.write(func(txn *memdb.Txn) error {
		rows, err := userNotifications(txn, userID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, row := range rows {
			if row.IsRead {
				continue
			}
			n := *row
			n.IsRead = true
			n.ReadAt = &now
			if err := txn.Insert(tableNotifications, &n); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}

func (r *notificationRepo) Delete(_ context.Context, id, userID string) error {
	return r.s.write(func(txn *memdb.Txn) error {
		row, err := owned(txn, id, userID)
		if err != nil {
			return err
		}
		return txn.Delete(tableNotifications, row)
	})
}
