package config

import (
	"fmt"
	"time"

	"debtreminder-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens the connection pool for the given DSN.
func ConnectDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("config: database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// partial unique indexes cannot be expressed through struct tags.
var guardIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_daily_guard
		ON reminders (debt_id, reminder_type, kind, reminder_day)
		WHERE kind <> 'owner_alert'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_telegram_users_active_owner
		ON telegram_users (user_id)
		WHERE user_type = 'business_owner' AND is_active`,
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Customer{},
		&models.Debt{},
		&models.Order{},
		&models.Prescription{},
		&models.Reminder{},
		&models.TelegramUser{},
		&models.VerificationCode{},
		&models.ReminderSettings{},
		&models.NotificationPreference{},
		&models.TelegramMessage{},
	); err != nil {
		return fmt.Errorf("config: auto migrate: %w", err)
	}

	for _, stmt := range guardIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("config: create guard index: %w", err)
		}
	}
	return nil
}
