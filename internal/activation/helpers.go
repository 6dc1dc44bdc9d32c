package activation

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/db"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/notify"
)

// lockedObject re-reads the parent object under a row lock so two concurrent
// checks cannot disagree about which activation row is the latest.
func lockedObject(tx *gorm.DB, id uint) (*models.ConstructionObject, error) {
	var obj models.ConstructionObject
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&obj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("activation: object %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("activation: lock object %d: %w", id, err)
	}
	return &obj, nil
}

// notifyHolders enqueues the same alert for the object's SSK and foreman.
func notifyHolders(tx *gorm.DB, obj *models.ConstructionObject, subject, message string) error {
	for _, id := range []*string{obj.SSKID, obj.ForemanID} {
		if id == nil {
			continue
		}
		var u models.User
		if err := tx.Where("id = ?", *id).First(&u).Error; err != nil {
			continue
		}
		if err := notify.EnqueueForUser(tx, &obj.ID, &u, subject, message); err != nil {
			return err
		}
	}
	return nil
}
