package models

import "time"

// Object lifecycle statuses. Transitions are validated in internal/object.
const (
	ObjectDraft             = "draft"
	ObjectActivationPending = "activation_pending"
	ObjectActive            = "active"
	ObjectSuspended         = "suspended"
	ObjectCompletedBySSK    = "completed_by_ssk"
	ObjectCompleted         = "completed"
)

// ConstructionObject is one physical construction site. Role-holder fields
// (SSK, Foreman, IKO) gate who may act on it; CanProceed is derived state
// and is only ever recomputed, never toggled independently.
type ConstructionObject struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	UUID       string `gorm:"size:36;uniqueIndex"`
	Name       string `gorm:"size:255;not null"`
	Address    string `gorm:"size:500"`
	Status     string `gorm:"size:32;default:draft;index"`
	CanProceed bool   `gorm:"default:false"`

	SSKID       *string `gorm:"size:36;index"`
	ForemanID   *string `gorm:"size:36;index"`
	IKOID       *string `gorm:"size:36;index"`
	CreatedByID *string `gorm:"size:36"`

	CreatedAt time.Time
	UpdatedAt time.Time

	SSK       *User `gorm:"foreignKey:SSKID"`
	Foreman   *User `gorm:"foreignKey:ForemanID"`
	IKO       *User `gorm:"foreignKey:IKOID"`
	CreatedBy *User `gorm:"foreignKey:CreatedByID"`
}

// Activation statuses. A rejected check is modeled as "checked" with
// IKOHasViolations=true, never a separate terminal state.
const (
	ActivationRequested = "requested"
	ActivationChecked   = "checked"
	ActivationApproved  = "approved"
)

// ObjectActivation is one attempt to move an object from pending to active.
// The most recent row by RequestedAt is the live one; history is append-only.
type ObjectActivation struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	ObjectID uint   `gorm:"index;not null"`
	Status   string `gorm:"size:16;default:requested;index"`

	RequestedByID string `gorm:"size:36"`

	SSKChecklist    string `gorm:"type:json"`
	SSKChecklistPDF string `gorm:"size:1000"`
	IKOChecklist    string `gorm:"type:json"`
	IKOChecklistPDF string `gorm:"size:1000"`

	IKOHasViolations bool   `gorm:"default:false"`
	RejectedReason   string `gorm:"type:text"`

	RequestedAt  time.Time `gorm:"index"`
	IKOCheckedAt *time.Time
	ApprovedAt   *time.Time

	Object      ConstructionObject `gorm:"foreignKey:ObjectID"`
	RequestedBy User               `gorm:"foreignKey:RequestedByID"`
}

// ObjectRoleAudit records one role-holder change on an object. Rows are
// written inside the same transaction as the object save and never updated.
type ObjectRoleAudit struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	ObjectID    uint    `gorm:"index;not null"`
	Field       string  `gorm:"size:16;not null"` // ssk, foreman, iko
	OldUserID   *string `gorm:"size:36"`
	NewUserID   *string `gorm:"size:36"`
	ChangedByID string  `gorm:"size:36"`
	CreatedAt   time.Time

	Object    ConstructionObject `gorm:"foreignKey:ObjectID"`
	ChangedBy User               `gorm:"foreignKey:ChangedByID"`
}
