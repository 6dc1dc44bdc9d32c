// Package delivery implements the material delivery workflow: SSK schedules
// a delivery, the foreman receives it with an invoice, SSK accepts, rejects
// or routes samples to the laboratory.
package delivery

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

// Decision is SSK's verdict on a received delivery.
type Decision string

const (
	DecisionAccept    Decision = "accept"
	DecisionReject    Decision = "reject"
	DecisionSendToLab Decision = "send_to_lab"
)

// ScheduleOpts holds the fields of a new scheduled delivery.
type ScheduleOpts struct {
	ObjectID    uint
	PlannedDate *time.Time
	Notes       string
}

// ReceiveOpts holds the foreman's receiving report.
type ReceiveOpts struct {
	InvoicePDFURL string
	InvoiceData   string // JSON line items
}

// DecideOpts holds SSK's verdict. LabItems is required for DecisionSendToLab.
type DecideOpts struct {
	Decision Decision
	LabItems string // JSON [{invoice_item_id, sample_code}]
}

// ListFilters narrows delivery listings.
type ListFilters struct {
	ObjectID uint
	Status   string
	Limit    int
	Offset   int
}

// Schedule creates a delivery in the scheduled state.
func Schedule(conn *gorm.DB, actor *models.User, opts ScheduleOpts) (*models.Delivery, error) {
	var del models.Delivery
	err := conn.Transaction(func(tx *gorm.DB) error {
		obj, err := lockedObject(tx, opts.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpDeliveryCreate, actor, ownership(obj)); err != nil {
			return err
		}

		del = models.Delivery{
			UUID:        uuid.New().String(),
			ObjectID:    obj.ID,
			PlannedDate: opts.PlannedDate,
			Notes:       opts.Notes,
			Status:      models.DeliveryScheduled,
			CreatedByID: actor.ID,
		}
		if err := tx.Create(&del).Error; err != nil {
			return fmt.Errorf("delivery: create: %w", err)
		}

		syslog.Info(tx, models.LogCategoryDelivery, "object %q: delivery %s scheduled by %s",
			obj.Name, del.UUID, actor.Email)

		if obj.ForemanID != nil {
			var foreman models.User
			if err := tx.Where("id = ?", *obj.ForemanID).First(&foreman).Error; err == nil {
				return notify.EnqueueForUser(tx, &obj.ID, &foreman, "Delivery scheduled",
					fmt.Sprintf("Object %q: a material delivery has been scheduled.", obj.Name))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &del, nil
}

// Receive records the foreman's receipt of a scheduled delivery together
// with its invoice and moves it to received.
func Receive(conn *gorm.DB, actor *models.User, deliveryID uint, opts ReceiveOpts) (*models.Delivery, error) {
	var del *models.Delivery
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		del, err = lockedDelivery(tx, deliveryID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, del.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpDeliveryReceive, actor, ownership(obj)); err != nil {
			return err
		}
		if del.Status != models.DeliveryScheduled {
			return fmt.Errorf("delivery: %d is %s, only a scheduled delivery can be received: %w",
				del.ID, del.Status, domain.ErrConflict)
		}

		inv := models.Invoice{
			ObjectID:   obj.ID,
			DeliveryID: del.ID,
			PDFURL:     opts.InvoicePDFURL,
			Data:       jsonOrEmpty(opts.InvoiceData),
		}
		if err := tx.Create(&inv).Error; err != nil {
			return fmt.Errorf("delivery: create invoice for %d: %w", del.ID, err)
		}

		del.Status = models.DeliveryReceived
		if err := tx.Save(del).Error; err != nil {
			return fmt.Errorf("delivery: save %d: %w", del.ID, err)
		}

		syslog.Info(tx, models.LogCategoryDelivery, "object %q: delivery %s received by %s",
			obj.Name, del.UUID, actor.Email)

		if obj.SSKID != nil {
			var ssk models.User
			if err := tx.Where("id = ?", *obj.SSKID).First(&ssk).Error; err == nil {
				return notify.EnqueueForUser(tx, &obj.ID, &ssk, "Delivery received",
					fmt.Sprintf("Object %q: delivery received, awaiting your decision.", obj.Name))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return del, nil
}

// Decide records SSK's verdict on a received delivery. Sending to the lab
// creates a LabOrder and parks the delivery in awaiting_lab until
// CompleteLab is called.
func Decide(conn *gorm.DB, actor *models.User, deliveryID uint, opts DecideOpts) (*models.Delivery, error) {
	var del *models.Delivery
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		del, err = lockedDelivery(tx, deliveryID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, del.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpDeliveryDecide, actor, ownership(obj)); err != nil {
			return err
		}
		if del.Status != models.DeliveryReceived {
			return fmt.Errorf("delivery: %d is %s, only a received delivery can be decided: %w",
				del.ID, del.Status, domain.ErrConflict)
		}

		switch opts.Decision {
		case DecisionAccept:
			del.Status = models.DeliveryAccepted
		case DecisionReject:
			del.Status = models.DeliveryRejected
		case DecisionSendToLab:
			if opts.LabItems == "" {
				return fmt.Errorf("delivery: lab items are required: %w", domain.ErrValidation)
			}
			order := models.LabOrder{
				DeliveryID: del.ID,
				Items:      opts.LabItems,
				Status:     models.LabOrderSent,
			}
			if err := tx.Create(&order).Error; err != nil {
				return fmt.Errorf("delivery: create lab order for %d: %w", del.ID, err)
			}
			del.Status = models.DeliveryAwaitingLab
		default:
			return fmt.Errorf("delivery: unknown decision %q: %w", opts.Decision, domain.ErrValidation)
		}

		if err := tx.Save(del).Error; err != nil {
			return fmt.Errorf("delivery: save %d: %w", del.ID, err)
		}

		syslog.Info(tx, models.LogCategoryDelivery, "object %q: delivery %s %s by %s",
			obj.Name, del.UUID, del.Status, actor.Email)

		if obj.ForemanID != nil {
			var foreman models.User
			if err := tx.Where("id = ?", *obj.ForemanID).First(&foreman).Error; err == nil {
				return notify.EnqueueForUser(tx, &obj.ID, &foreman, "Delivery decision",
					fmt.Sprintf("Object %q: delivery is now %s.", obj.Name, del.Status))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return del, nil
}

// CompleteLab closes a lab order with the final verdict and settles the
// parked delivery accordingly.
func CompleteLab(conn *gorm.DB, actor *models.User, deliveryID uint, passed bool) (*models.Delivery, error) {
	var del *models.Delivery
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		del, err = lockedDelivery(tx, deliveryID)
		if err != nil {
			return err
		}
		obj, err := lockedObject(tx, del.ObjectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpDeliveryDecide, actor, ownership(obj)); err != nil {
			return err
		}
		if del.Status != models.DeliveryAwaitingLab {
			return fmt.Errorf("delivery: %d is %s, no lab order pending: %w",
				del.ID, del.Status, domain.ErrConflict)
		}

		err = tx.Model(&models.LabOrder{}).
			Where("delivery_id = ? AND status = ?", del.ID, models.LabOrderSent).
			Update("status", models.LabOrderDone).Error
		if err != nil {
			return fmt.Errorf("delivery: close lab order for %d: %w", del.ID, err)
		}

		if passed {
			del.Status = models.DeliveryAccepted
		} else {
			del.Status = models.DeliveryRejected
		}
		if err := tx.Save(del).Error; err != nil {
			return fmt.Errorf("delivery: save %d: %w", del.ID, err)
		}

		syslog.Info(tx, models.LogCategoryDelivery, "object %q: lab verdict on delivery %s: %s",
			obj.Name, del.UUID, del.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return del, nil
}

// Get retrieves a delivery visible to the actor.
func Get(conn *gorm.DB, actor *models.User, id uint) (*models.Delivery, error) {
	var del models.Delivery
	err := conn.Preload("Object").Preload("CreatedBy").Where("id = ?", id).First(&del).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("delivery: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("delivery: get %d: %w", id, err)
	}
	if !visible(actor, &del.Object) {
		return nil, fmt.Errorf("delivery: %d: %w", id, domain.ErrNotFound)
	}
	return &del, nil
}

// List returns deliveries on objects visible to the actor, newest first.
func List(conn *gorm.DB, actor *models.User, filters ListFilters) ([]models.Delivery, int64, error) {
	q := conn.Model(&models.Delivery{}).
		Joins("JOIN construction_objects ON construction_objects.id = deliveries.object_id")

	switch actor.Role {
	case models.RoleIKO:
		q = q.Where("construction_objects.iko_id = ?", actor.ID)
	case models.RoleForeman:
		q = q.Where("construction_objects.foreman_id = ?", actor.ID)
	}
	if filters.ObjectID != 0 {
		q = q.Where("deliveries.object_id = ?", filters.ObjectID)
	}
	if filters.Status != "" {
		q = q.Where("deliveries.status = ?", filters.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("delivery: count: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	var rows []models.Delivery
	err := q.Order("deliveries.created_at DESC").Limit(limit).Offset(filters.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("delivery: list: %w", err)
	}
	return rows, total, nil
}

func ownership(obj *models.ConstructionObject) authz.Resource {
	return authz.Resource{SSKID: obj.SSKID, ForemanID: obj.ForemanID, IKOID: obj.IKOID}
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
			return nil, fmt.Errorf("delivery: object %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("delivery: lock object %d: %w", id, err)
	}
	return &obj, nil
}

func lockedDelivery(tx *gorm.DB, id uint) (*models.Delivery, error) {
	var del models.Delivery
	err := db.LockForUpdate(tx).Where("id = ?", id).First(&del).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("delivery: %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("delivery: lock %d: %w", id, err)
	}
	return &del, nil
}
