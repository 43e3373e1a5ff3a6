package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DebtStatus string

const (
	DebtPending DebtStatus = "pending"
	DebtPaid    DebtStatus = "paid"
	DebtOverdue DebtStatus = "overdue"
)

// Debt is owed by one Customer to the business account UserID.
type Debt struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	CustomerID uuid.UUID `gorm:"type:uuid;index;not null" json:"customer_id"`
	Customer   Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	DueDate     time.Time       `gorm:"type:date;index;not null" json:"due_date"`
	Description *string         `json:"description"`
	Status      DebtStatus      `gorm:"type:varchar(20);index;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Debt) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return
}
