// Package checklist implements daily site reports: the foreman submits a
// checklist with photos, SSK approves or rejects it.
package checklist

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
	"github.com/itc-hub/sitecontrol/internal/notify"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

// SubmitOpts holds a new daily checklist.
type SubmitOpts struct {
	ObjectID        uint
	Data            string // JSON answers
	PDFURL          string
	PhotosFolderURL string
}

// ReviewOpts holds SSK's verdict on a submitted checklist.
type ReviewOpts struct {
	Approved bool
	Comment  string
}

// ListFilters narrows checklist listings.
type ListFilters struct {
	ObjectID uint
	Status   string
	Limit    int
	Offset   int
}

// Submit records a daily checklist on an active object.
func Submit(conn *gorm.DB, actor *models.User, opts SubmitOpts) (*models.DailyChecklist, error) {
	var cl models.DailyChecklist
	err := conn.Transaction(func(tx *gorm.DB) error {
		obj, err := lockedObject(tx, opts.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpChecklistSubmit, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}
		if obj.Status != models.ObjectActive {
			return fmt.Errorf("checklist: object %d is %s, reports are accepted on active objects only: %w",
				obj.ID, obj.Status, domain.ErrConflict)
		}

		cl = models.DailyChecklist{
			UUID:            uuid.New().String(),
			ObjectID:        obj.ID,
			AuthorID:        actor.ID,
			Data:            jsonOrEmpty(opts.Data),
			PDFURL:          opts.PDFURL,
			PhotosFolderURL: opts.PhotosFolderURL,
			Status:          models.ChecklistSubmitted,
		}
		if err := tx.Create(&cl).Error; err != nil {
			return fmt.Errorf("checklist: create: %w", err)
		}

		syslog.Info(tx, models.LogCategoryObject, "object %q: daily checklist submitted by %s",
			obj.Name, actor.Email)

		if obj.SSKID != nil {
			var ssk models.User
			if err := tx.Where("id = ?", *obj.SSKID).First(&ssk).Error; err == nil {
				return notify.EnqueueForUser(tx, &obj.ID, &ssk, "Daily checklist submitted",
					fmt.Sprintf("Object %q: a daily checklist awaits review.", obj.Name))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// Review records SSK's verdict on a submitted checklist.
func Review(conn *gorm.DB, actor *models.User, checklistID uint, opts ReviewOpts) (*models.DailyChecklist, error) {
	var cl *models.DailyChecklist
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		cl, err = lockedChecklist(tx, checklistID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, cl.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpChecklistReview, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}
		if cl.Status != models.ChecklistSubmitted {
			return fmt.Errorf("checklist: %d already reviewed: %w", cl.ID, domain.ErrConflict)
		}

		now := time.Now()
		if opts.Approved {
			cl.Status = models.ChecklistApproved
		} else {
			cl.Status = models.ChecklistRejected
		}
		cl.ReviewedByID = &actor.ID
		cl.ReviewedAt = &now
		cl.ReviewComment = opts.Comment
		if err := tx.Save(cl).Error; err != nil {
			return fmt.Errorf("checklist: save %d: %w", cl.ID, err)
		}

		syslog.Info(tx, models.LogCategoryObject, "object %q: daily checklist %s by %s",
			obj.Name, cl.Status, actor.Email)

		var author models.User
		if err := tx.Where("id = ?", cl.AuthorID).First(&author).Error; err == nil {
			return notify.EnqueueForUser(tx, &obj.ID, &author, "Checklist reviewed",
				fmt.Sprintf("Object %q: your daily checklist was %s. %s", obj.Name, cl.Status, opts.Comment))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// Get retrieves a checklist visible to the actor.
func Get(conn *gorm.DB, actor *models.User, id uint) (*models.DailyChecklist, error) {
	var cl models.DailyChecklist
	err := conn.Preload("Object").Preload("Author").Where("id = ?", id).First(&cl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checklist: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("checklist: get %d: %w", id, err)
	}
	if !visible(actor, &cl.Object) {
		return nil, fmt.Errorf("checklist: %d: %w", id, domain.ErrNotFound)
	}
	return &cl, nil
}

// List returns checklists on objects visible to the actor, newest first.
func List(conn *gorm.DB, actor *models.User, filters ListFilters) ([]models.DailyChecklist, int64, error) {
	q := conn.Model(&models.DailyChecklist{}).
		Joins("JOIN construction_objects ON construction_objects.id = daily_checklists.object_id")

	switch actor.Role {
	case models.RoleIKO:
		q = q.Where("construction_objects.iko_id = ?", actor.ID)
	case models.RoleForeman:
		q = q.Where("construction_objects.foreman_id = ?", actor.ID)
	}
	if filters.ObjectID != 0 {
		q = q.Where("daily_checklists.object_id = ?", filters.ObjectID)
	}
	if filters.Status != "" {
		q = q.Where("daily_checklists.status = ?", filters.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("checklist: count: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	var rows []models.DailyChecklist
	err := q.Preload("Author").Order("daily_checklists.created_at DESC").
		Limit(limit).Offset(filters.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("checklist: list: %w", err)
	}
	return rows, total, nil
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

func jsonOrEmpty(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}

func lockedObject(tx *gorm.DB, id uint) (*models.ConstructionObject, error) {
	var obj models.ConstructionObject
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&obj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checklist: object %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("checklist: lock object %d: %w", id, err)
	}
	return &obj, nil
}

func lockedChecklist(tx *gorm.DB, id uint) (*models.DailyChecklist, error) {
	var cl models.DailyChecklist
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&cl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checklist: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("checklist: lock %d: %w", id, err)
	}
	return &cl, nil
}
