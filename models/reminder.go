// models/reminder.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
)

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
)

// ReminderKind separates the audiences a debt can be reminded to.
type ReminderKind string

const (
	KindCustomerReminder ReminderKind = "customer_reminder"
	KindOwnerDigest      ReminderKind = "owner_digest"
	KindOwnerAlert       ReminderKind = "owner_alert"
)

// Reminder is the delivery log. A row is inserted as pending before the
// send and settled to sent or failed once, after it.
type Reminder struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	DebtID         uuid.UUID      `gorm:"type:uuid;index;not null" json:"debt_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	Kind           ReminderKind   `gorm:"type:varchar(20);not null" json:"kind"`
	ReminderType   Channel        `gorm:"type:varchar(20);not null" json:"reminder_type"`
	Status         ReminderStatus `gorm:"type:varchar(20);not null" json:"status"`
	ScheduledDate  time.Time      `gorm:"not null" json:"scheduled_date"`
	SentAt         *time.Time     `json:"sent_at"`
	MessageContent string         `gorm:"type:text" json:"message_content"`
	ErrorMessage   *string        `gorm:"type:text" json:"error_message"`
	ReminderDay    time.Time      `gorm:"type:date;not null" json:"reminder_day"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
