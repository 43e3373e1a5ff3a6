package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReminderSettings is per-account channel configuration.
type ReminderSettings struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID             uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	ReminderDaysBefore IntList   `gorm:"type:jsonb" json:"reminder_days_before"`
	ReminderTime       string    `gorm:"type:varchar(5)" json:"reminder_time"`
	TelegramEnabled    bool      `gorm:"not null" json:"telegram_enabled"`
	EmailEnabled       bool      `gorm:"not null" json:"email_enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (s *ReminderSettings) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

// DefaultReminderSettings applies when an account never saved any.
func DefaultReminderSettings(userID uuid.UUID) ReminderSettings {
	return ReminderSettings{
		UserID:             userID,
		ReminderDaysBefore: IntList{1, 3, 7},
		ReminderTime:       "09:00",
		TelegramEnabled:    true,
		EmailEnabled:       true,
	}
}

// ChannelEnabled reports whether reminders may go out on ch.
func (s ReminderSettings) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelTelegram:
		return s.TelegramEnabled
	case ChannelEmail:
		return s.EmailEnabled
	}
	return false
}

// NotificationPreference gates the owner digest.
type NotificationPreference struct {
	ID                uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	UserID            uuid.UUID           `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	DailyEnabled      bool                `gorm:"not null" json:"daily_enabled"`
	MinimumDebtAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"minimum_debt_amount"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (p *NotificationPreference) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// DefaultNotificationPreference applies when an account never saved any.
func DefaultNotificationPreference(userID uuid.UUID) NotificationPreference {
	return NotificationPreference{UserID: userID, DailyEnabled: true}
}

// Admits reports whether a debt of amount passes the minimum filter.
func (p NotificationPreference) Admits(amount decimal.Decimal) bool {
	if !p.MinimumDebtAmount.Valid {
		return true
	}
	return amount.GreaterThanOrEqual(p.MinimumDebtAmount.Decimal)
}
