package models

import "time"

// SystemLog levels.
const (
	LogDebug    = "debug"
	LogInfo     = "info"
	LogWarning  = "warning"
	LogError    = "error"
	LogCritical = "critical"
)

// SystemLog categories.
const (
	LogCategoryAuth         = "auth"
	LogCategoryObject       = "object"
	LogCategoryActivation   = "activation"
	LogCategoryPrescription = "prescription"
	LogCategoryDelivery     = "delivery"
	LogCategoryWorkPlan     = "work_plan"
	LogCategoryUser         = "user"
	LogCategorySystem       = "system"
)

// SystemLog is a persisted application log row, listable by admins.
type SystemLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Level     string `gorm:"size:10;default:info;index"`
	Category  string `gorm:"size:20;default:system;index"`
	Message   string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}
