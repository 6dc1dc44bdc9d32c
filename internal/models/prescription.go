package models

import "time"

// Prescription statuses.
const (
	PrescriptionOpen                 = "open"
	PrescriptionAwaitingVerification = "awaiting_verification"
	PrescriptionClosed               = "closed"
)

// Prescription is a recorded violation tied to an object. A prescription
// with RequiresStop forces the object's CanProceed to false until every
// such prescription is closed.
type Prescription struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	UUID     string `gorm:"size:36;uniqueIndex"`
	ObjectID uint   `gorm:"index;not null"`
	AuthorID string `gorm:"size:36;not null"`

	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`

	RequiresStop            bool `gorm:"default:false;index"`
	RequiresPersonalRecheck bool `gorm:"default:false"`

	Attachments string `gorm:"type:json"` // photo/document URLs

	Status   string `gorm:"size:32;default:open;index"`
	ClosedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Object ConstructionObject `gorm:"foreignKey:ObjectID"`
	Author User               `gorm:"foreignKey:AuthorID"`
}

// PrescriptionFix is a foreman's remediation report on a prescription.
type PrescriptionFix struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	PrescriptionID uint   `gorm:"index;not null"`
	AuthorID       string `gorm:"size:36;not null"`
	Comment        string `gorm:"type:text"`
	Attachments    string `gorm:"type:json"`
	CreatedAt      time.Time

	Prescription Prescription `gorm:"foreignKey:PrescriptionID"`
	Author       User         `gorm:"foreignKey:AuthorID"`
}
