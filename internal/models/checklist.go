package models

import "time"

// Daily checklist statuses.
const (
	ChecklistSubmitted = "submitted"
	ChecklistApproved  = "approved"
	ChecklistRejected  = "rejected"
)

// DailyChecklist is a foreman's daily report on an object, reviewed by SSK.
type DailyChecklist struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	UUID     string `gorm:"size:36;uniqueIndex"`
	ObjectID uint   `gorm:"index;not null"`
	AuthorID string `gorm:"size:36;not null"`

	Data            string `gorm:"type:json"`
	PDFURL          string `gorm:"size:1000"`
	PhotosFolderURL string `gorm:"size:1000"`

	Status        string  `gorm:"size:16;default:submitted;index"`
	ReviewedByID  *string `gorm:"size:36"`
	ReviewedAt    *time.Time
	ReviewComment string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Object     ConstructionObject `gorm:"foreignKey:ObjectID"`
	Author     User               `gorm:"foreignKey:AuthorID"`
	ReviewedBy *User              `gorm:"foreignKey:ReviewedByID"`
}
