// Package authz is the role/ownership gate for every domain operation.
//
// Authorization is a pure function of (actor role, actor identity, resource
// ownership fields). It holds no state and is evaluated before any mutation,
// so a denied operation has no partial effect.
package authz

import (
	"fmt"

	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
)

// Operation names one gated domain operation.
type Operation string

const (
	OpObjectCreate      Operation = "object.create"
	OpObjectAssign      Operation = "object.assign"
	OpObjectSuspend     Operation = "object.suspend"
	OpObjectResume      Operation = "object.resume"
	OpObjectCompleteSSK Operation = "object.complete_ssk"
	OpObjectComplete    Operation = "object.complete"
	OpAuditList         Operation = "object.audit_list"

	OpActivationRequest Operation = "activation.request"
	OpActivationCheck   Operation = "activation.check"

	OpPrescriptionCreate Operation = "prescription.create"
	OpPrescriptionFix    Operation = "prescription.fix"
	OpPrescriptionVerify Operation = "prescription.verify"

	OpDeliveryCreate  Operation = "delivery.create"
	OpDeliveryReceive Operation = "delivery.receive"
	OpDeliveryDecide  Operation = "delivery.decide"

	OpWorkPlanCreate Operation = "workplan.create"

	OpChecklistSubmit Operation = "checklist.submit"
	OpChecklistReview Operation = "checklist.review"

	OpUserManage Operation = "user.manage"
	OpLogList    Operation = "log.list"
)

// Resource carries the ownership fields a fine-grained rule may inspect.
// Zero value means "no ownership to check" (coarse role rule only).
type Resource struct {
	SSKID     *string
	ForemanID *string
	IKOID     *string
	AuthorID  string // prescription author, for verify
}

// ownerFn reports whether the actor satisfies the ownership requirement.
type ownerFn func(actor *models.User, res Resource) bool

type rule struct {
	roles []models.Role
	owner ownerFn // nil: coarse role check only
}

func isSSK(actor *models.User, res Resource) bool {
	return res.SSKID != nil && *res.SSKID == actor.ID
}

func isIKO(actor *models.User, res Resource) bool {
	return res.IKOID != nil && *res.IKOID == actor.ID
}

func isForeman(actor *models.User, res Resource) bool {
	return res.ForemanID != nil && *res.ForemanID == actor.ID
}

func isSSKOrIKO(actor *models.User, res Resource) bool {
	switch actor.Role {
	case models.RoleSSK:
		return isSSK(actor, res)
	case models.RoleIKO:
		return isIKO(actor, res)
	}
	return false
}

func isAuthor(actor *models.User, res Resource) bool {
	return res.AuthorID == actor.ID
}

// policy is the single table driving every authorization decision. Admin is
// not listed: admins bypass both layers (see Authorize).
var policy = map[Operation]rule{
	OpObjectCreate: {roles: nil}, // admin only

	OpObjectAssign:      {roles: []models.Role{models.RoleSSK}, owner: isSSK},
	OpObjectSuspend:     {roles: []models.Role{models.RoleSSK, models.RoleIKO}, owner: isSSKOrIKO},
	OpObjectResume:      {roles: []models.Role{models.RoleSSK, models.RoleIKO}, owner: isSSKOrIKO},
	OpObjectCompleteSSK: {roles: []models.Role{models.RoleSSK}, owner: isSSK},
	OpObjectComplete:    {roles: []models.Role{models.RoleIKO}, owner: isIKO},
	OpAuditList:         {roles: []models.Role{models.RoleSSK, models.RoleIKO}},

	OpActivationRequest: {roles: []models.Role{models.RoleSSK}, owner: isSSK},
	OpActivationCheck:   {roles: []models.Role{models.RoleIKO}, owner: isIKO},

	OpPrescriptionCreate: {roles: []models.Role{models.RoleIKO, models.RoleSSK}},
	OpPrescriptionFix:    {roles: []models.Role{models.RoleForeman}, owner: isForeman},
	OpPrescriptionVerify: {roles: []models.Role{models.RoleIKO, models.RoleSSK}, owner: isAuthor},

	OpDeliveryCreate:  {roles: []models.Role{models.RoleSSK}, owner: isSSK},
	OpDeliveryReceive: {roles: []models.Role{models.RoleForeman}, owner: isForeman},
	OpDeliveryDecide:  {roles: []models.Role{models.RoleSSK}, owner: isSSK},

	OpWorkPlanCreate: {roles: []models.Role{models.RoleSSK}, owner: isSSK},

	OpChecklistSubmit: {roles: []models.Role{models.RoleForeman}, owner: isForeman},
	OpChecklistReview: {roles: []models.Role{models.RoleSSK}, owner: isSSK},

	OpUserManage: {roles: nil}, // admin only
	OpLogList:    {roles: nil}, // admin only
}

// Authorize permits or denies op for actor on res. Admin passes every check;
// any other role must appear in the operation's allow-list and, when the rule
// has an ownership check, hold the matching role field on the resource.
func Authorize(op Operation, actor *models.User, res Resource) error {
	if actor == nil {
		return fmt.Errorf("authz: %s: no actor: %w", op, domain.ErrForbidden)
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}

	r, ok := policy[op]
	if !ok {
		return fmt.Errorf("authz: %s: unknown operation: %w", op, domain.ErrForbidden)
	}

	allowed := false
	for _, role := range r.roles {
		if actor.Role == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("authz: %s: role %s not permitted: %w", op, actor.Role, domain.ErrForbidden)
	}

	if r.owner != nil && !r.owner(actor, res) {
		return fmt.Errorf("authz: %s: actor %s does not hold the required role on this resource: %w", op, actor.ID, domain.ErrForbidden)
	}
	return nil
}
