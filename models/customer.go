package models

import (
	"time"

	"debtreminder-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer belongs to exactly one business account (UserID).
type Customer struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_customer_id_number,priority:2;index:idx_customer_phone,priority:1" json:"user_id"`

	Name            string  `gorm:"not null" json:"name"`
	Email           string  `gorm:"not null" json:"email"`
	Phone           *string `json:"phone"`
	PhoneNormalized string  `gorm:"index:idx_customer_phone,priority:2" json:"-"`
	IDNumber        *string `gorm:"uniqueIndex:idx_customer_id_number,priority:1" json:"id_number"`
	Address         *string `json:"address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// BeforeSave keeps the phone lookup column in sync with Phone.
func (c *Customer) BeforeSave(tx *gorm.DB) (err error) {
	c.PhoneNormalized = ""
	if c.Phone != nil {
		c.PhoneNormalized = utils.NormalizePhone(*c.Phone)
	}
	return
}

// Order and Prescription are only modelled far enough to cascade deletes.
type Order struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null"`
	CustomerID uuid.UUID `gorm:"type:uuid;index;not null"`
	Status     string    `gorm:"default:'pending'"`
	Total      float64   `gorm:"type:decimal(12,2);not null"`
	OrderDate  time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Prescription struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID           uuid.UUID  `gorm:"type:uuid;index;not null"`
	CustomerID       uuid.UUID  `gorm:"type:uuid;index;not null"`
	OrderID          *uuid.UUID `gorm:"type:uuid"`
	PrescriptionData JSONB      `gorm:"type:jsonb;default:'{}'"`
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
