// Package syslog writes leveled, categorized log rows to the database.
package syslog

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/models"
)

// Write persists one log row. Best-effort: a failed insert is logged to
// stderr and never surfaces to the caller.
func Write(conn *gorm.DB, level, category, format string, args ...interface{}) {
	row := models.SystemLog{
		Level:    level,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
	if err := conn.Create(&row).Error; err != nil {
		log.Printf("syslog: write (%s/%s): %v", level, category, err)
	}
}

// Info writes an info-level row.
func Info(conn *gorm.DB, category, format string, args ...interface{}) {
	Write(conn, models.LogInfo, category, format, args...)
}

// Warning writes a warning-level row.
func Warning(conn *gorm.DB, category, format string, args ...interface{}) {
	Write(conn, models.LogWarning, category, format, args...)
}

// Error writes an error-level row.
func Error(conn *gorm.DB, category, format string, args ...interface{}) {
	Write(conn, models.LogError, category, format, args...)
}

// List returns log rows filtered by level and category, newest first.
func List(conn *gorm.DB, level, category string, limit, offset int) ([]models.SystemLog, int64, error) {
	q := conn.Model(&models.SystemLog{})
	if level != "" {
		q = q.Where("level = ?", level)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("syslog: count: %w", err)
	}

	var rows []models.SystemLog
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("syslog: list: %w", err)
	}
	return rows, total, nil
}
