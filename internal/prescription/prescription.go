// Package prescription implements the violation workflow: IKO/SSK record a
// violation, the foreman remediates, the author verifies. Prescriptions with
// requires_stop gate the object's can_proceed flag.
package prescription

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
	"github.com/itc-hub/sitecontrol/internal/object"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

// CreateOpts holds parameters for recording a new violation.
type CreateOpts struct {
	ObjectID                uint
	Title                   string
	Description             string
	RequiresStop            bool
	RequiresPersonalRecheck bool
	Attachments             string // JSON array of URLs
}

// FixOpts holds the foreman's remediation report.
type FixOpts struct {
	Comment     string
	Attachments string // JSON array of URLs
}

// VerifyOpts holds the author's verdict on a remediation.
type VerifyOpts struct {
	Accepted bool
	Comment  string
}

// ListFilters holds optional filters for listing prescriptions.
type ListFilters struct {
	ObjectID     uint
	Status       string
	RequiresStop *bool
	OnlyOpen     bool
	Limit        int
	Offset       int
}

// Create records a violation on an object. Actor must be IKO, SSK or admin.
// A requires_stop violation closes the object's work gate immediately.
func Create(conn *gorm.DB, actor *models.User, opts CreateOpts) (*models.Prescription, error) {
	if err := authz.Authorize(authz.OpPrescriptionCreate, actor, authz.Resource{}); err != nil {
		return nil, err
	}
	if opts.Title == "" {
		return nil, fmt.Errorf("prescription: title is required: %w", domain.ErrValidation)
	}

	var pres models.Prescription
	err := conn.Transaction(func(tx *gorm.DB) error {
		obj, err := lockedObject(tx, opts.ObjectID)
		if err != nil {
			return err
		}

		pres = models.Prescription{
			UUID:                    uuid.New().String(),
			ObjectID:                obj.ID,
			AuthorID:                actor.ID,
			Title:                   opts.Title,
			Description:             opts.Description,
			RequiresStop:            opts.RequiresStop,
			RequiresPersonalRecheck: opts.RequiresPersonalRecheck,
			Attachments:             jsonOrEmpty(opts.Attachments),
			Status:                  models.PrescriptionOpen,
		}
		if err := tx.Create(&pres).Error; err != nil {
			return fmt.Errorf("prescription: create: %w", err)
		}

		if pres.RequiresStop {
			if err := object.RecomputeCanProceed(tx, obj); err != nil {
				return err
			}
		}

		syslog.Warning(tx, models.LogCategoryPrescription, "object %q: violation %q recorded by %s",
			obj.Name, pres.Title, actor.Email)

		if obj.ForemanID != nil {
			var foreman models.User
			if err := tx.Where("id = ?", *obj.ForemanID).First(&foreman).Error; err == nil {
				return notify.EnqueueForUser(tx, &obj.ID, &foreman, "Violation recorded",
					fmt.Sprintf("Object %q: violation %q requires remediation.", obj.Name, pres.Title))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pres, nil
}

// Fix records the foreman's remediation and moves the prescription to
// awaiting_verification. The object's work gate is untouched until the
// author verifies.
func Fix(conn *gorm.DB, actor *models.User, prescriptionID uint, opts FixOpts) (*models.Prescription, error) {
	var pres *models.Prescription
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		pres, err = lockedPrescription(tx, prescriptionID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, pres.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpPrescriptionFix, actor, authz.Resource{
			SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID,
		}); err != nil {
			return err
		}
		if pres.Status == models.PrescriptionClosed {
			return fmt.Errorf("prescription: %d is closed: %w", pres.ID, domain.ErrConflict)
		}

		fix := models.PrescriptionFix{
			PrescriptionID: pres.ID,
			AuthorID:       actor.ID,
			Comment:        opts.Comment,
			Attachments:    jsonOrEmpty(opts.Attachments),
		}
		if err := tx.Create(&fix).Error; err != nil {
			return fmt.Errorf("prescription: create fix for %d: %w", pres.ID, err)
		}

		pres.Status = models.PrescriptionAwaitingVerification
		if err := tx.Save(pres).Error; err != nil {
			return fmt.Errorf("prescription: save %d: %w", pres.ID, err)
		}

		syslog.Info(tx, models.LogCategoryPrescription, "object %q: violation %q fixed by %s",
			obj.Name, pres.Title, actor.Email)

		var author models.User
		if err := tx.Where("id = ?", pres.AuthorID).First(&author).Error; err == nil {
			return notify.EnqueueForUser(tx, &obj.ID, &author, "Violation fixed",
				fmt.Sprintf("Object %q: violation %q awaits your verification.", obj.Name, pres.Title))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pres, nil
}

// Verify records the author's verdict. Acceptance closes the prescription
// and reopens the object's work gate once no stopping prescription remains.
// Rejection closes the current row and clones it into a fresh open one so
// the correction chain stays append-only.
func Verify(conn *gorm.DB, actor *models.User, prescriptionID uint, opts VerifyOpts) (*models.Prescription, error) {
	var out *models.Prescription
	err := conn.Transaction(func(tx *gorm.DB) error {
		pres, err := lockedPrescription(tx, prescriptionID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, pres.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpPrescriptionVerify, actor, authz.Resource{
			AuthorID: pres.AuthorID,
		}); err != nil {
			return err
		}
		if pres.Status != models.PrescriptionAwaitingVerification {
			return fmt.Errorf("prescription: %d is %s, only a fixed prescription can be verified: %w",
				pres.ID, pres.Status, domain.ErrConflict)
		}

		now := time.Now()
		pres.Status = models.PrescriptionClosed
		pres.ClosedAt = &now
		if err := tx.Save(pres).Error; err != nil {
			return fmt.Errorf("prescription: close %d: %w", pres.ID, err)
		}
		out = pres

		if opts.Accepted {
			if pres.RequiresStop {
				if err := object.RecomputeCanProceed(tx, obj); err != nil {
					return err
				}
			}
			syslog.Info(tx, models.LogCategoryPrescription, "object %q: violation %q closed by %s",
				obj.Name, pres.Title, actor.Email)
		} else {
			// Clone rather than reopen: the closed row keeps its timestamps,
			// the fresh row carries the rejection forward.
			clone := models.Prescription{
				UUID:                    uuid.New().String(),
				ObjectID:                pres.ObjectID,
				AuthorID:                pres.AuthorID,
				Title:                   pres.Title,
				Description:             rejectionDescription(opts.Comment, pres.Description),
				RequiresStop:            pres.RequiresStop,
				RequiresPersonalRecheck: pres.RequiresPersonalRecheck,
				Attachments:             pres.Attachments,
				Status:                  models.PrescriptionOpen,
			}
			if err := tx.Create(&clone).Error; err != nil {
				return fmt.Errorf("prescription: clone rejected %d: %w", pres.ID, err)
			}
			out = &clone

			syslog.Warning(tx, models.LogCategoryPrescription, "object %q: fix of violation %q rejected by %s",
				obj.Name, pres.Title, actor.Email)
		}

		verdict := "accepted"
		if !opts.Accepted {
			verdict = "rejected"
		}
		return notifyHolders(tx, obj, "Violation verification",
			fmt.Sprintf("Object %q: fix of violation %q was %s. %s", obj.Name, pres.Title, verdict, opts.Comment))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get retrieves a prescription the actor may see.
func Get(conn *gorm.DB, actor *models.User, id uint) (*models.Prescription, error) {
	var pres models.Prescription
	err := conn.Preload("Object").Preload("Author").Where("id = ?", id).First(&pres).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("prescription: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("prescription: get %d: %w", id, err)
	}
	if !visible(actor, &pres.Object) {
		return nil, fmt.Errorf("prescription: %d: %w", id, domain.ErrNotFound)
	}
	return &pres, nil
}

// List returns prescriptions on objects visible to the actor, newest first.
func List(conn *gorm.DB, actor *models.User, filters ListFilters) ([]models.Prescription, int64, error) {
	q := conn.Model(&models.Prescription{}).
		Joins("JOIN construction_objects ON construction_objects.id = prescriptions.object_id")

	switch actor.Role {
	case models.RoleIKO:
		q = q.Where("construction_objects.iko_id = ?", actor.ID)
	case models.RoleForeman:
		q = q.Where("construction_objects.foreman_id = ?", actor.ID)
	}

	if filters.ObjectID != 0 {
		q = q.Where("prescriptions.object_id = ?", filters.ObjectID)
	}
	if filters.Status != "" {
		q = q.Where("prescriptions.status = ?", filters.Status)
	}
	if filters.RequiresStop != nil {
		q = q.Where("prescriptions.requires_stop = ?", *filters.RequiresStop)
	}
	if filters.OnlyOpen {
		q = q.Where("prescriptions.status <> ?", models.PrescriptionClosed)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("prescription: count: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	var rows []models.Prescription
	err := q.Preload("Author").Order("prescriptions.created_at DESC").
		Limit(limit).Offset(filters.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("prescription: list: %w", err)
	}
	return rows, total, nil
}

// rejectionDescription prefixes the rejection comment to the prior text so
// the correction chain is readable from the newest row alone.
func rejectionDescription(comment, prior string) string {
	if comment == "" {
		return prior
	}
	if prior == "" {
		return "Rejected: " + comment
	}
	return "Rejected: " + comment + "\n\n" + prior
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
		return "[]"
	}
	return s
}

func lockedObject(tx *gorm.DB, id uint) (*models.ConstructionObject, error) {
	var obj models.ConstructionObject
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&obj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("prescription: object %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("prescription: lock object %d: %w", id, err)
	}
	return &obj, nil
}

func lockedPrescription(tx *gorm.DB, id uint) (*models.Prescription, error) {
	var pres models.Prescription
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&pres).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("prescription: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("prescription: lock %d: %w", id, err)
	}
	return &pres, nil
}

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
