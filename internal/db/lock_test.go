package db

import (
	"strings"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/itc-hub/sitecontrol/internal/models"
)

func TestLockForUpdate_MySQLAddsClause(t *testing.T) {
	// A sqlite handle stands in as the conn pool so the mysql dialector can
	// build statements without a server; DryRun keeps it from executing them.
	backing, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open backing db: %v", err)
	}
	sqlDB, err := backing.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}

	conn, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun: true,
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open mysql dry-run: %v", err)
	}

	var rows []models.User
	tx := LockForUpdate(conn).Where("id = ?", "u-1").Find(&rows)
	sql := tx.Statement.SQL.String()
	if !strings.Contains(sql, "FOR UPDATE") {
		t.Errorf("mysql query = %q, want FOR UPDATE clause", sql)
	}
}

func TestLockForUpdate_SqliteSkipsClause(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DryRun: true,
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite dry-run: %v", err)
	}

	var rows []models.User
	tx := LockForUpdate(conn).Where("id = ?", "u-1").Find(&rows)
	sql := tx.Statement.SQL.String()
	if strings.Contains(sql, "FOR UPDATE") {
		t.Errorf("sqlite query = %q, must not carry FOR UPDATE", sql)
	}
	if tx.Error != nil {
		t.Fatalf("build query: %v", tx.Error)
	}
}
