// Package workplan manages work plans: titled lists of planned works per
// object with numbered document snapshots.
package workplan

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/authz"
	"github.com/itc-hub/sitecontrol/internal/db"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

// ItemOpts is one line of a plan being created or replaced.
type ItemOpts struct {
	Name        string
	Quantity    float64
	Unit        string
	StartDate   time.Time
	EndDate     time.Time
	DocumentURL string
}

// CreateOpts holds a new plan with its initial items.
type CreateOpts struct {
	ObjectID uint
	Title    string
	Items    []ItemOpts
}

// Create makes a plan for an object with its initial line items.
func Create(conn *gorm.DB, actor *models.User, opts CreateOpts) (*models.WorkPlan, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("workplan: title is required: %w", domain.ErrValidation)
	}

	var plan models.WorkPlan
	err := conn.Transaction(func(tx *gorm.DB) error {
		obj, err := lockedObject(tx, opts.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpWorkPlanCreate, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}

		plan = models.WorkPlan{
			UUID:        uuid.New().String(),
			ObjectID:    obj.ID,
			Title:       opts.Title,
			CreatedByID: actor.ID,
		}
		if err := tx.Create(&plan).Error; err != nil {
			return fmt.Errorf("workplan: create: %w", err)
		}
		if err := insertItems(tx, plan.ID, opts.Items); err != nil {
			return err
		}

		syslog.Info(tx, models.LogCategoryWorkPlan, "object %q: work plan %q created by %s",
			obj.Name, plan.Title, actor.Email)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ReplaceItems swaps the full item list of a plan. Items are not versioned
// individually; a document snapshot pins the state when needed.
func ReplaceItems(conn *gorm.DB, actor *models.User, planID uint, items []ItemOpts) (*models.WorkPlan, error) {
	var plan *models.WorkPlan
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = lockedPlan(tx, planID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, plan.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpWorkPlanCreate, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}

		if err := tx.Where("plan_id = ?", plan.ID).Delete(&models.WorkItem{}).Error; err != nil {
			return fmt.Errorf("workplan: clear items of %d: %w", plan.ID, err)
		}
		return insertItems(tx, plan.ID, items)
	})
	if err != nil {
		return nil, err
	}
	return Get(conn, actor, planID)
}

// Snapshot records a new document version of the plan. Version numbers are
// sequential per plan, assigned under the plan's row lock.
func Snapshot(conn *gorm.DB, actor *models.User, planID uint, docURL string) (*models.WorkPlanVersion, error) {
	var ver models.WorkPlanVersion
	err := conn.Transaction(func(tx *gorm.DB) error {
		plan, err := lockedPlan(tx, planID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, plan.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpWorkPlanCreate, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}

		var last uint
		row := tx.Model(&models.WorkPlanVersion{}).
			Where("plan_id = ?", plan.ID).
			Select("COALESCE(MAX(version), 0)")
		if err := row.Scan(&last).Error; err != nil {
			return fmt.Errorf("workplan: last version of %d: %w", plan.ID, err)
		}

		ver = models.WorkPlanVersion{
			PlanID:  plan.ID,
			Version: last + 1,
			DocURL:  docURL,
		}
		if err := tx.Create(&ver).Error; err != nil {
			return fmt.Errorf("workplan: snapshot %d: %w", plan.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ver, nil
}

// Get retrieves a plan with its items.
func Get(conn *gorm.DB, actor *models.User, id uint) (*models.WorkPlan, error) {
	var plan models.WorkPlan
	err := conn.Preload("Items").Preload("Object").Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workplan: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("workplan: get %d: %w", id, err)
	}
	if !visible(actor, &plan.Object) {
		return nil, fmt.Errorf("workplan: %d: %w", id, domain.ErrNotFound)
	}
	return &plan, nil
}

// ListByObject returns the plans of one object, newest first.
func ListByObject(conn *gorm.DB, actor *models.User, objectID uint) ([]models.WorkPlan, error) {
	var obj models.ConstructionObject
	if err := conn.Where("id = ?", objectID).First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workplan: object %d: %w", objectID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("workplan: object %d: %w", objectID, err)
	}
	if !visible(actor, &obj) {
		return nil, fmt.Errorf("workplan: object %d: %w", objectID, domain.ErrNotFound)
	}

	var plans []models.WorkPlan
	err := conn.Preload("Items").Where("object_id = ?", objectID).
		Order("created_at DESC").Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("workplan: list for object %d: %w", objectID, err)
	}
	return plans, nil
}

// Versions returns the document snapshots of a plan, newest first.
func Versions(conn *gorm.DB, actor *models.User, planID uint) ([]models.WorkPlanVersion, error) {
	if _, err := Get(conn, actor, planID); err != nil {
		return nil, err
	}
	var vers []models.WorkPlanVersion
	err := conn.Where("plan_id = ?", planID).Order("version DESC").Find(&vers).Error
	if err != nil {
		return nil, fmt.Errorf("workplan: versions of %d: %w", planID, err)
	}
	return vers, nil
}

func insertItems(tx *gorm.DB, planID uint, items []ItemOpts) error {
	for _, it := range items {
		if it.Name == "" {
			return fmt.Errorf("workplan: item name is required: %w", domain.ErrValidation)
		}
		row := models.WorkItem{
			PlanID:      planID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			StartDate:   it.StartDate,
			EndDate:     it.EndDate,
			DocumentURL: it.DocumentURL,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("workplan: create item %q: %w", it.Name, err)
		}
	}
	return nil
}

func visible(actor *models.User, obj *models.ConstructionObject) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleSSK:
		return true
	case models.RoleIKO:
		return obj.IKOID != nil && *obj.IKOID == actor.ID
	case models.RoleForeman:
		return obj.ForemanID != nil && *obj.ForemanID == actor.ID
	}
	return false
}

func lockedObject(tx *gorm.DB, id uint) (*models.ConstructionObject, error) {
	var obj models.ConstructionObject
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&obj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workplan: object %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("workplan: lock object %d: %w", id, err)
	}
	return &obj, nil
}

func lockedPlan(tx *gorm.DB, id uint) (*models.WorkPlan, error) {
	var plan models.WorkPlan
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workplan: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("workplan: lock %d: %w", id, err)
	}
	return &plan, nil
}
