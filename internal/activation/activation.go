// Package activation implements the approval workflow that moves an object
// from activation_pending to active: the SSK requests, the IKO checks.
package activation

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/authz"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/notify"
	"github.com/itc-hub/sitecontrol/internal/object"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

// RequestOpts holds the SSK's activation checklist.
type RequestOpts struct {
	SSKChecklist    string // JSON payload
	SSKChecklistPDF string
}

// CheckOpts holds the IKO's inspection result.
type CheckOpts struct {
	HasViolations   bool
	IKOChecklist    string // JSON payload
	IKOChecklistPDF string
	RejectedReason  string
}

// Request opens a new activation attempt for the object. Actor must be an
// admin or the object's SSK. When the object has no IKO yet, the least-loaded
// active IKO is auto-assigned (with an audit row, like any role change).
// Each request is a new row; history is never erased.
func Request(conn *gorm.DB, actor *models.User, objectID uint, opts RequestOpts) (*models.ObjectActivation, error) {
	var act models.ObjectActivation
	err := conn.Transaction(func(tx *gorm.DB) error {
		obj, err := lockedObject(tx, objectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpActivationRequest, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}

		if obj.IKOID == nil {
			iko, err := object.PickLeastLoaded(tx, models.RoleIKO)
			if err != nil {
				return err
			}
			if err := object.SetRoleHolders(tx, actor, obj, object.AssignOpts{IKOID: &iko.ID}); err != nil {
				return err
			}
		}

		act = models.ObjectActivation{
			ObjectID:        obj.ID,
			Status:          models.ActivationRequested,
			RequestedByID:   actor.ID,
			SSKChecklist:    opts.SSKChecklist,
			SSKChecklistPDF: opts.SSKChecklistPDF,
			RequestedAt:     time.Now(),
		}
		if err := tx.Create(&act).Error; err != nil {
			return fmt.Errorf("activation: create request for object %d: %w", obj.ID, err)
		}

		syslog.Info(tx, models.LogCategoryActivation, "object %q: activation requested by %s", obj.Name, actor.Email)

		var iko models.User
		if err := tx.Where("id = ?", *obj.IKOID).First(&iko).Error; err != nil {
			return fmt.Errorf("activation: load iko for object %d: %w", obj.ID, err)
		}
		return notify.EnqueueForUser(tx, &obj.ID, &iko, "Activation requested",
			fmt.Sprintf("Object %q: pick an inspection date for activation.", obj.Name))
	})
	if err != nil {
		return nil, err
	}
	return &act, nil
}

// IkoCheck records the IKO's inspection of the latest activation request.
// Violations leave the object untouched and keep the request open for a new
// attempt; a clean check approves the activation and activates the object.
func IkoCheck(conn *gorm.DB, actor *models.User, objectID uint, opts CheckOpts) (*models.ObjectActivation, error) {
	var act models.ObjectActivation
	err := conn.Transaction(func(tx *gorm.DB) error {
		obj, err := lockedObject(tx, objectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpActivationCheck, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}

		// The most recent request by requested_at is the live one.
		err = tx.Where("object_id = ?", obj.ID).
			Order("requested_at DESC").First(&act).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("activation: request for object %d: %w", obj.ID, domain.ErrNotFound)
			}
			return fmt.Errorf("activation: load latest for object %d: %w", obj.ID, err)
		}

		now := time.Now()
		act.IKOHasViolations = opts.HasViolations
		act.IKOChecklist = opts.IKOChecklist
		act.IKOChecklistPDF = opts.IKOChecklistPDF
		act.IKOCheckedAt = &now

		if opts.HasViolations {
			act.Status = models.ActivationChecked
			act.RejectedReason = opts.RejectedReason
			if err := tx.Save(&act).Error; err != nil {
				return fmt.Errorf("activation: save check for object %d: %w", obj.ID, err)
			}

			syslog.Warning(tx, models.LogCategoryActivation, "object %q: activation rejected by %s: %s",
				obj.Name, actor.Email, opts.RejectedReason)
			return notifyHolders(tx, obj, "Activation rejected",
				fmt.Sprintf("Object %q: activation was rejected: %s", obj.Name, opts.RejectedReason))
		}

		act.Status = models.ActivationApproved
		act.ApprovedAt = &now
		act.RejectedReason = ""
		if err := tx.Save(&act).Error; err != nil {
			return fmt.Errorf("activation: approve for object %d: %w", obj.ID, err)
		}

		obj.Status = models.ObjectActive
		if err := tx.Save(obj).Error; err != nil {
			return fmt.Errorf("activation: activate object %d: %w", obj.ID, err)
		}
		if err := object.RecomputeCanProceed(tx, obj); err != nil {
			return err
		}

		syslog.Info(tx, models.LogCategoryActivation, "object %q: activation approved by %s", obj.Name, actor.Email)
		return notifyHolders(tx, obj, "Activation approved",
			fmt.Sprintf("Object %q is now active.", obj.Name))
	})
	if err != nil {
		return nil, err
	}
	return &act, nil
}

// Latest returns the most recent activation attempt for an object.
func Latest(conn *gorm.DB, objectID uint) (*models.ObjectActivation, error) {
	var act models.ObjectActivation
	err := conn.Where("object_id = ?", objectID).
		Order("requested_at DESC").First(&act).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("activation: request for object %d: %w", objectID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("activation: latest for object %d: %w", objectID, err)
	}
	return &act, nil
}
