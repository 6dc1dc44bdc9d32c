package object

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/authz"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/notify"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

// AssignOpts names the role holders to set. Nil fields are left unchanged.
type AssignOpts struct {
	SSKID     *string
	ForemanID *string
	IKOID     *string
}

// roleFields pairs each assignable field with the role its holder must have.
var roleFields = []struct {
	name string
	role models.Role
}{
	{"ssk", models.RoleSSK},
	{"foreman", models.RoleForeman},
	{"iko", models.RoleIKO},
}

// Assign sets role holders on an object. Actor must be an admin or the
// object's SSK. Every changed field produces exactly one audit row in the
// same transaction; the first SSK assignment moves a draft object to
// activation_pending.
func Assign(conn *gorm.DB, actor *models.User, objectID uint, opts AssignOpts) (*models.ConstructionObject, error) {
	var obj *models.ConstructionObject
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		obj, err = lockedObject(tx, objectID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(authz.OpObjectAssign, actor, ownership(obj)); err != nil {
			return err
		}
		return SetRoleHolders(tx, actor, obj, opts)
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// SetRoleHolders mutates the role-holder fields, writes audit rows for each
// diff, and advances draft objects on first SSK assignment. Runs inside the
// caller's transaction; authorization has already happened.
func SetRoleHolders(tx *gorm.DB, actor *models.User, obj *models.ConstructionObject, opts AssignOpts) error {
	old := map[string]*string{
		"ssk":     obj.SSKID,
		"foreman": obj.ForemanID,
		"iko":     obj.IKOID,
	}

	requested := map[string]*string{
		"ssk":     opts.SSKID,
		"foreman": opts.ForemanID,
		"iko":     opts.IKOID,
	}

	for _, f := range roleFields {
		id := requested[f.name]
		if id == nil {
			continue
		}
		target, err := activeUser(tx, *id)
		if err != nil {
			return err
		}
		if target.Role != f.role {
			return fmt.Errorf("object: user %s has role %s, cannot hold %s: %w",
				target.ID, target.Role, f.name, domain.ErrValidation)
		}
		switch f.name {
		case "ssk":
			obj.SSKID = id
		case "foreman":
			obj.ForemanID = id
		case "iko":
			obj.IKOID = id
		}
	}

	// First SSK assignment activates the approval pipeline.
	if old["ssk"] == nil && obj.SSKID != nil && obj.Status == models.ObjectDraft {
		obj.Status = models.ObjectActivationPending
	}

	if err := tx.Save(obj).Error; err != nil {
		return fmt.Errorf("object: save %d: %w", obj.ID, err)
	}

	now := map[string]*string{
		"ssk":     obj.SSKID,
		"foreman": obj.ForemanID,
		"iko":     obj.IKOID,
	}
	for _, f := range roleFields {
		if sameRef(old[f.name], now[f.name]) {
			continue
		}
		audit := models.ObjectRoleAudit{
			ObjectID:    obj.ID,
			Field:       f.name,
			OldUserID:   old[f.name],
			NewUserID:   now[f.name],
			ChangedByID: actor.ID,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("object: audit %s change on %d: %w", f.name, obj.ID, err)
		}

		if now[f.name] != nil {
			holder, err := activeUser(tx, *now[f.name])
			if err != nil {
				return err
			}
			if err := notify.EnqueueForUser(tx, &obj.ID, holder, "Role assigned",
				fmt.Sprintf("You are now the %s of object %q.", f.name, obj.Name)); err != nil {
				return err
			}
		}
		syslog.Info(tx, models.LogCategoryObject, "object %q: %s reassigned by %s", obj.Name, f.name, actor.Email)
	}
	return nil
}

// ListAudit returns the role-change history of an object, newest first.
// Actor must be an admin or hold a role on the object.
func ListAudit(conn *gorm.DB, actor *models.User, objectID uint) ([]models.ObjectRoleAudit, error) {
	obj, err := Get(conn, objectID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(authz.OpAuditList, actor, ownership(obj)); err != nil {
		return nil, err
	}

	var rows []models.ObjectRoleAudit
	err = conn.Preload("ChangedBy").Where("object_id = ?", objectID).
		Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("object: audit list %d: %w", objectID, err)
	}
	return rows, nil
}

// activeUser loads a user that exists and is active.
func activeUser(tx *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := tx.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("object: user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("object: load user %s: %w", id, err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("object: user %s is deactivated: %w", id, domain.ErrValidation)
	}
	return &u, nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
