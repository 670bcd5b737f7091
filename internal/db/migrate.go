package db

import (
	"fmt"

	"github.com/jilsnshah/alignflow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Case{},
		&models.CaseImage{},
		&models.Session{},
		&models.Dentist{},
		&models.Appointment{},
		&models.MessageLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedDentists upserts the authorized dentist roster. Existing rows keep
// their UserID binding so re-seeding never unlinks a registered account.
func SeedDentists(db *gorm.DB, dentists []models.Dentist) error {
	for _, d := range dentists {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "clinic", "license"}),
		}).Create(&d)
		if result.Error != nil {
			return fmt.Errorf("db: seed dentist %q: %w", d.Email, result.Error)
		}
	}
	return nil
}
