package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TelegramRole string

const (
	RoleBusinessOwner TelegramRole = "business_owner"
	RoleCustomer      TelegramRole = "customer"
)

// TelegramUser binds a chat to a customer or to a business account.
type TelegramUser struct {
	ID               uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	TelegramChatID   int64        `gorm:"not null;uniqueIndex:idx_telegram_chat_role,priority:1" json:"telegram_chat_id"`
	TelegramUsername *string      `json:"telegram_username"`
	UserID           *uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	CustomerID       *uuid.UUID   `gorm:"type:uuid;index" json:"customer_id"`
	UserType         TelegramRole `gorm:"type:varchar(20);not null;uniqueIndex:idx_telegram_chat_role,priority:2" json:"user_type"`
	IsActive         bool         `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (t *TelegramUser) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

// VerificationCode proves account ownership once, before ExpiresAt.
type VerificationCode struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Code      string    `gorm:"type:varchar(6);index;not null" json:"code"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `gorm:"not null" json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *VerificationCode) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return
}

type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// TelegramMessage is an immutable transcript row.
type TelegramMessage struct {
	ID             uuid.UUID        `gorm:"type:uuid;primary_key"`
	TelegramChatID int64            `gorm:"index;not null"`
	MessageText    string           `gorm:"type:text"`
	MessageType    string           `gorm:"type:varchar(20);not null;default:'text'"`
	Direction      MessageDirection `gorm:"type:varchar(10);not null"`
	UserID         *uuid.UUID       `gorm:"type:uuid"`
	CreatedAt      time.Time
}

func (m *TelegramMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
