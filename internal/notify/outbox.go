package notify

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/models"
)

// Enqueue inserts a pending notification row. Call it with the transaction
// handle of the domain operation so the row commits or rolls back with it.
func Enqueue(tx *gorm.DB, objectID *uint, userID, email, subject, message string) error {
	n := models.Notification{
		ObjectID: objectID,
		UserID:   userID,
		Email:    email,
		Subject:  subject,
		Message:  message,
		Status:   models.NotificationPending,
	}
	if err := tx.Create(&n).Error; err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// EnqueueForUser enqueues a notification addressed to u. No-op when u is nil,
// so callers can pass optional role holders without guarding.
func EnqueueForUser(tx *gorm.DB, objectID *uint, u *models.User, subject, message string) error {
	if u == nil {
		return nil
	}
	return Enqueue(tx, objectID, u.ID, u.Email, subject, message)
}

// Pending returns up to limit undelivered rows, oldest first.
func Pending(conn *gorm.DB, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	err := conn.Where("status = ?", models.NotificationPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("notify: pending: %w", err)
	}
	return rows, nil
}

// RetryFailed flips failed rows with attempts below max back to pending so
// the next dispatch cycle picks them up.
func RetryFailed(conn *gorm.DB, maxAttempts int) (int64, error) {
	result := conn.Model(&models.Notification{}).
		Where("status = ? AND attempts < ?", models.NotificationFailed, maxAttempts).
		Update("status", models.NotificationPending)
	if result.Error != nil {
		return 0, fmt.Errorf("notify: retry failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
