package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/models"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.RefreshToken{},
		&models.ConstructionObject{},
		&models.ObjectActivation{},
		&models.ObjectRoleAudit{},
		&models.Prescription{},
		&models.PrescriptionFix{},
		&models.Notification{},
		&models.Delivery{},
		&models.Invoice{},
		&models.LabOrder{},
		&models.WorkPlan{},
		&models.WorkItem{},
		&models.WorkPlanVersion{},
		&models.DailyChecklist{},
		&models.SystemLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
