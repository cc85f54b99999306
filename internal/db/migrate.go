package db

import (
	"fmt"
	"log"

	"ion7/internal/model"

	"gorm.io/gorm"
)

// Migrate runs database migrations for all models
func Migrate(gdb *gorm.DB) error {
	log.Println("Starting database migration...")

	models := []interface{}{
		&model.Account{},
		&model.Domain{},
		&model.Site{},
		&model.Email{},
		&model.PasswordResetToken{},
	}

	if err := gdb.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("✓ Database migration completed successfully (%d tables)", len(models))
	return nil
}
