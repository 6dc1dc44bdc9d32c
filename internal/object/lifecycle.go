package object

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/authz"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/notify"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

// ValidTransitions maps each object status to its legal successors.
// Activation approval is the only way into active from activation_pending;
// the approval path is driven by the activation workflow.
var ValidTransitions = map[string][]string{
	models.ObjectDraft:             {models.ObjectActivationPending},
	models.ObjectActivationPending: {models.ObjectActive},
	models.ObjectActive:            {models.ObjectSuspended, models.ObjectCompletedBySSK},
	models.ObjectSuspended:         {models.ObjectActive},
	models.ObjectCompletedBySSK:    {models.ObjectCompleted},
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to string) bool {
	for _, t := range ValidTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Suspend halts work on an active object. Actor must be an admin, the
// object's SSK, or the object's IKO.
func Suspend(conn *gorm.DB, actor *models.User, objectID uint) (*models.ConstructionObject, error) {
	var obj *models.ConstructionObject
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		obj, err = lockedObject(tx, objectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpObjectSuspend, actor, ownership(obj)); err != nil {
			return err
		}
		if obj.Status != models.ObjectActive {
			return fmt.Errorf("object: %d is %s, only an active object can be suspended: %w",
				obj.ID, obj.Status, domain.ErrConflict)
		}

		obj.Status = models.ObjectSuspended
		obj.CanProceed = false
		if err := tx.Save(obj).Error; err != nil {
			return fmt.Errorf("object: suspend %d: %w", obj.ID, err)
		}

		syslog.Info(tx, models.LogCategoryObject, "object %q suspended by %s", obj.Name, actor.Email)
		return notifyHolders(tx, obj, "Object suspended",
			fmt.Sprintf("Work on object %q is suspended.", obj.Name))
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Resume restarts work on a suspended object. Calling it on an object that
// is already active is a state no-op but still passes authorization.
func Resume(conn *gorm.DB, actor *models.User, objectID uint) (*models.ConstructionObject, error) {
	var obj *models.ConstructionObject
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		obj, err = lockedObject(tx, objectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpObjectResume, actor, ownership(obj)); err != nil {
			return err
		}
		if obj.Status == models.ObjectActive {
			return nil
		}
		if obj.Status != models.ObjectSuspended {
			return fmt.Errorf("object: %d is %s, only a suspended object can be resumed: %w",
				obj.ID, obj.Status, domain.ErrConflict)
		}

		obj.Status = models.ObjectActive
		if err := tx.Save(obj).Error; err != nil {
			return fmt.Errorf("object: resume %d: %w", obj.ID, err)
		}
		// Open stopping prescriptions keep the gate closed after resume.
		if err := RecomputeCanProceed(tx, obj); err != nil {
			return err
		}

		syslog.Info(tx, models.LogCategoryObject, "object %q resumed by %s", obj.Name, actor.Email)
		return notifyHolders(tx, obj, "Object resumed",
			fmt.Sprintf("Work on object %q has resumed.", obj.Name))
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// CompleteBySSK records the SSK's completion of an active object and hands
// it to the IKO for final sign-off.
func CompleteBySSK(conn *gorm.DB, actor *models.User, objectID uint) (*models.ConstructionObject, error) {
	var obj *models.ConstructionObject
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		obj, err = lockedObject(tx, objectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpObjectCompleteSSK, actor, ownership(obj)); err != nil {
			return err
		}
		if obj.Status != models.ObjectActive {
			return fmt.Errorf("object: %d is %s, only an active object can be completed: %w",
				obj.ID, obj.Status, domain.ErrConflict)
		}

		obj.Status = models.ObjectCompletedBySSK
		obj.CanProceed = false
		if err := tx.Save(obj).Error; err != nil {
			return fmt.Errorf("object: complete by ssk %d: %w", obj.ID, err)
		}

		syslog.Info(tx, models.LogCategoryObject, "object %q completed by SSK %s", obj.Name, actor.Email)
		if obj.IKOID != nil {
			iko, err := activeUser(tx, *obj.IKOID)
			if err != nil {
				return err
			}
			return notify.EnqueueForUser(tx, &obj.ID, iko, "Object awaiting final completion",
				fmt.Sprintf("Object %q was completed by the SSK and awaits your sign-off.", obj.Name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Complete is the IKO's final completion. Rejected unless the SSK completed
// the object first.
func Complete(conn *gorm.DB, actor *models.User, objectID uint) (*models.ConstructionObject, error) {
	var obj *models.ConstructionObject
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		obj, err = lockedObject(tx, objectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpObjectComplete, actor, ownership(obj)); err != nil {
			return err
		}
		if obj.Status != models.ObjectCompletedBySSK {
			return fmt.Errorf("object: %d is %s, the SSK must complete the object first: %w",
				obj.ID, obj.Status, domain.ErrConflict)
		}

		obj.Status = models.ObjectCompleted
		obj.CanProceed = false
		if err := tx.Save(obj).Error; err != nil {
			return fmt.Errorf("object: complete %d: %w", obj.ID, err)
		}

		syslog.Info(tx, models.LogCategoryObject, "object %q completed by IKO %s", obj.Name, actor.Email)
		return notifyHolders(tx, obj, "Object completed",
			fmt.Sprintf("Object %q is completed.", obj.Name))
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// notifyHolders enqueues the same alert for the object's SSK and foreman.
func notifyHolders(tx *gorm.DB, obj *models.ConstructionObject, subject, message string) error {
	for _, id := range []*string{obj.SSKID, obj.ForemanID} {
		if id == nil {
			continue
		}
		u, err := activeUser(tx, *id)
		if err != nil {
			// A deactivated holder should not block the transition.
			continue
		}
		if err := notify.EnqueueForUser(tx, &obj.ID, u, subject, message); err != nil {
			return err
		}
	}
	return nil
}
