package models

import "time"

type NotificationType string

const (
	NotificationTransaction NotificationType = "transaction"
	NotificationDelivery    NotificationType = "delivery"
	NotificationDispute     NotificationType = "dispute"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"-"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
	ReadAt    *time.Time       `json:"readAt"`
}
