// Package object owns the construction-object lifecycle: creation, role
// assignment with audit, and the status state machine.
package object

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/authz"
	"github.com/itc-hub/sitecontrol/internal/db"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
)

// CreateOpts holds parameters for creating a new construction object.
type CreateOpts struct {
	Name    string
	Address string
	// SSKID optionally assigns the site-control holder at creation.
	SSKID *string
	// AutoAssignSSK picks the least-loaded active SSK when SSKID is unset.
	AutoAssignSSK bool
}

// ListFilters holds optional filters for listing objects.
type ListFilters struct {
	Status string
	Query  string // substring match on name or address
	Mine   bool   // restrict to objects the actor holds (or created, for admins)
	Limit  int
	Offset int
}

// Create creates a new object in draft status. Admin only. Assigning an SSK
// at creation advances the object to activation_pending and writes the
// corresponding audit row, same as a later assignment would.
func Create(conn *gorm.DB, actor *models.User, opts CreateOpts) (*models.ConstructionObject, error) {
	if err := authz.Authorize(authz.OpObjectCreate, actor, authz.Resource{}); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("object: name is required: %w", domain.ErrValidation)
	}

	var obj models.ConstructionObject
	err := conn.Transaction(func(tx *gorm.DB) error {
		obj = models.ConstructionObject{
			UUID:        uuid.New().String(),
			Name:        opts.Name,
			Address:     opts.Address,
			Status:      models.ObjectDraft,
			CanProceed:  false,
			CreatedByID: &actor.ID,
		}
		if err := tx.Create(&obj).Error; err != nil {
			return fmt.Errorf("object: create: %w", err)
		}

		sskID := opts.SSKID
		if sskID == nil && opts.AutoAssignSSK {
			picked, err := pickLeastLoaded(tx, models.RoleSSK)
			if err != nil {
				return err
			}
			sskID = &picked.ID
		}
		if sskID != nil {
			if err := SetRoleHolders(tx, actor, &obj, AssignOpts{SSKID: sskID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// Get retrieves an object with its role holders preloaded.
func Get(conn *gorm.DB, id uint) (*models.ConstructionObject, error) {
	var obj models.ConstructionObject
	err := conn.Preload("SSK").Preload("Foreman").Preload("IKO").
		Where("id = ?", id).First(&obj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("object: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("object: get %d: %w", id, err)
	}
	return &obj, nil
}

// List returns objects visible to the actor, newest first. IKO and foremen
// see only objects they hold; admins and SSKs see everything, narrowed by
// Mine to held (SSK) or created (admin) objects.
func List(conn *gorm.DB, actor *models.User, filters ListFilters) ([]models.ConstructionObject, int64, error) {
	q := conn.Model(&models.ConstructionObject{})

	switch actor.Role {
	case models.RoleIKO:
		q = q.Where("iko_id = ?", actor.ID)
	case models.RoleForeman:
		q = q.Where("foreman_id = ?", actor.ID)
	}

	if filters.Mine {
		switch actor.Role {
		case models.RoleAdmin:
			q = q.Where("created_by_id = ?", actor.ID)
		case models.RoleSSK:
			q = q.Where("ssk_id = ?", actor.ID)
		}
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		q = q.Where("name LIKE ? OR address LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("object: count: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	var objs []models.ConstructionObject
	err := q.Preload("SSK").Preload("Foreman").Preload("IKO").
		Order("created_at DESC").Limit(limit).Offset(filters.Offset).
		Find(&objs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("object: list: %w", err)
	}
	return objs, total, nil
}

// RecomputeCanProceed derives can_proceed for obj and persists it within tx:
// false whenever the object is suspended or completed, or any open
// requires_stop prescription remains; true otherwise. The flag is never
// toggled independently of this rule.
func RecomputeCanProceed(tx *gorm.DB, obj *models.ConstructionObject) error {
	proceed := obj.Status == models.ObjectActive
	if proceed {
		var stoppers int64
		err := tx.Model(&models.Prescription{}).
			Where("object_id = ? AND requires_stop = ? AND status <> ?",
				obj.ID, true, models.PrescriptionClosed).
			Count(&stoppers).Error
		if err != nil {
			return fmt.Errorf("object: count stopping prescriptions for %d: %w", obj.ID, err)
		}
		proceed = stoppers == 0
	}

	if proceed == obj.CanProceed {
		return nil
	}
	if err := tx.Model(&models.ConstructionObject{}).Where("id = ?", obj.ID).
		Update("can_proceed", proceed).Error; err != nil {
		return fmt.Errorf("object: update can_proceed for %d: %w", obj.ID, err)
	}
	obj.CanProceed = proceed
	return nil
}

// lockedObject re-reads the object row under a row lock inside tx.
func lockedObject(tx *gorm.DB, id uint) (*models.ConstructionObject, error) {
	var obj models.ConstructionObject
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&obj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("object: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("object: lock %d: %w", id, err)
	}
	return &obj, nil
}

// ownership builds the authz resource view of an object.
func ownership(obj *models.ConstructionObject) authz.Resource {
	return authz.Resource{
		SSKID:     obj.SSKID,
		ForemanID: obj.ForemanID,
		IKOID:     obj.IKOID,
	}
}
