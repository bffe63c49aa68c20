package db

import (
	"fmt"

	"gorm.io/gorm"

	"societyhub/internal/model"
)

// Migrate creates or updates every collection table, including one table per
// user role partition.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Listing{},
		&model.Complaint{},
		&model.Bill{},
		&model.GateLog{},
		&model.ActivityEntry{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	for _, role := range model.Roles {
		if err := db.Table(role.Collection()).AutoMigrate(&model.UserProfile{}); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", role.Collection(), err)
		}
	}
	return nil
}

// Reset drops every collection table. Used by RESET_DB in development.
func Reset(db *gorm.DB) error {
	tables := []string{
		model.ActivityEntry{}.TableName(),
		string(model.KindGateLog),
		string(model.KindBill),
		string(model.KindComplaint),
		string(model.KindListing),
	}
	for _, role := range model.Roles {
		tables = append(tables, role.Collection())
	}
	for _, t := range tables {
		if err := db.Migrator().DropTable(t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}
