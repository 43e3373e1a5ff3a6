package services

import (
	"context"
	"time"

	"debtreminder-backend/models"

	"github.com/google/uuid"
)

// SelectionRule decides which due dates a sweep picks up.
type SelectionRule int

const (
	DueExactly SelectionRule = iota + 1
	DueOnOrBefore
)

func (r SelectionRule) String() string {
	switch r {
	case DueExactly:
		return "due_exactly"
	case DueOnOrBefore:
		return "due_on_or_before"
	}
	return "unknown"
}

// DebtFilter selects pending debts. Date is a calendar date.
type DebtFilter struct {
	Rule    SelectionRule
	Date    time.Time
	OwnerID *uuid.UUID
}

type ReminderQuery struct {
	DebtID  uuid.UUID
	Channel models.Channel
	Kind    models.ReminderKind
	Since   time.Time
}

// RegistrationQuery matches active registrations only. Exactly one of
// CustomerID and OwnerID is expected to be set.
type RegistrationQuery struct {
	CustomerID *uuid.UUID
	OwnerID    *uuid.UUID
	Role       models.TelegramRole
}

// OwnerClaim binds a chat to a business account with a verification code.
type OwnerClaim struct {
	CodeID   uuid.UUID
	OwnerID  uuid.UUID
	ChatID   int64
	Username *string
	Now      time.Time
}

// CustomerLink binds a chat that sent /start to one of the owner's customers.
type CustomerLink struct {
	OwnerID    uuid.UUID
	CustomerID uuid.UUID
	ChatID     int64
}

// Store is everything the reminder and bot services need from persistence.
type Store interface {
	ListPendingDebts(ctx context.Context, f DebtFilter) ([]models.Debt, error)
	GetDebt(ctx context.Context, id uuid.UUID) (models.Debt, error)
	UpdateDebtStatus(ctx context.Context, ownerID, id uuid.UUID, status models.DebtStatus) (models.Debt, error)

	CountReminders(ctx context.Context, q ReminderQuery) (int64, error)
	CreateReminder(ctx context.Context, r *models.Reminder) error
	SettleReminder(ctx context.Context, r *models.Reminder) error
	ListReminders(ctx context.Context, ownerID uuid.UUID, debtID *uuid.UUID) ([]models.Reminder, error)

	GetReminderSettings(ctx context.Context, ownerID uuid.UUID) (models.ReminderSettings, error)
	SaveReminderSettings(ctx context.Context, s *models.ReminderSettings) error
	GetNotificationPreference(ctx context.Context, ownerID uuid.UUID) (models.NotificationPreference, error)
	SaveNotificationPreference(ctx context.Context, p *models.NotificationPreference) error

	FindActiveRegistrations(ctx context.Context, q RegistrationQuery, limit int) ([]models.TelegramUser, error)
	ChatRegistrations(ctx context.Context, chatID int64) ([]models.TelegramUser, error)
	ListAccountRegistrations(ctx context.Context, ownerID uuid.UUID) ([]models.TelegramUser, error)
	CreateRegistration(ctx context.Context, reg *models.TelegramUser) error
	SetRegistrationActive(ctx context.Context, ownerID, id uuid.UUID, active bool) (models.TelegramUser, error)
	LinkCustomerChat(ctx context.Context, link CustomerLink) (models.TelegramUser, error)
	DeactivateOwnerRegistrations(ctx context.Context, ownerID uuid.UUID) (int64, error)
	ClaimOwnerRegistration(ctx context.Context, claim OwnerClaim) error

	FindVerificationCode(ctx context.Context, code string) (models.VerificationCode, error)
	ActiveVerificationCode(ctx context.Context, ownerID uuid.UUID, now time.Time) (models.VerificationCode, error)
	CreateVerificationCode(ctx context.Context, code *models.VerificationCode) error
	RetireVerificationCodes(ctx context.Context, ownerID uuid.UUID, now time.Time) error

	FindCustomersByPhone(ctx context.Context, ownerID uuid.UUID, normalized string, limit int) ([]models.Customer, error)
	DeleteCustomer(ctx context.Context, ownerID, id uuid.UUID) error

	LogTelegramMessage(ctx context.Context, m *models.TelegramMessage) error
}
