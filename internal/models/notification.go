package models

import "time"

// Notification delivery statuses.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is an outbox row. Domain operations insert it inside their
// own transaction; the dispatcher delivers it later and records the outcome.
// Delivery failure never affects the transaction that produced the row.
type Notification struct {
	ID       uint  `gorm:"primaryKey;autoIncrement"`
	ObjectID *uint `gorm:"index"`

	UserID  string `gorm:"size:36;index"`
	Email   string `gorm:"size:254"`
	Subject string `gorm:"size:255"`
	Message string `gorm:"type:text"`

	Status    string `gorm:"size:16;default:pending;index"`
	Attempts  int    `gorm:"default:0"`
	LastError string `gorm:"size:500"`
	SentAt    *time.Time

	CreatedAt time.Time
}
