package models

import "time"

// WorkPlan is a titled list of planned works for an object.
type WorkPlan struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UUID        string `gorm:"size:36;uniqueIndex"`
	ObjectID    uint   `gorm:"index;not null"`
	Title       string `gorm:"size:255"`
	CreatedByID string `gorm:"size:36"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Object    ConstructionObject `gorm:"foreignKey:ObjectID"`
	CreatedBy User               `gorm:"foreignKey:CreatedByID"`
	Items     []WorkItem         `gorm:"foreignKey:PlanID"`
}

// WorkItem is one line of a work plan.
type WorkItem struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	PlanID      uint    `gorm:"index;not null"`
	Name        string  `gorm:"size:300;not null"`
	Quantity    float64 `gorm:"default:0"`
	Unit        string  `gorm:"size:32"`
	StartDate   time.Time
	EndDate     time.Time
	DocumentURL string `gorm:"size:1000"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkPlanVersion pins a document snapshot of a plan. Version numbers are
// unique per plan and assigned sequentially.
type WorkPlanVersion struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	PlanID    uint   `gorm:"uniqueIndex:idx_plan_version;not null"`
	Version   uint   `gorm:"uniqueIndex:idx_plan_version;not null"`
	DocURL    string `gorm:"size:1000"`
	CreatedAt time.Time

	Plan WorkPlan `gorm:"foreignKey:PlanID"`
}
