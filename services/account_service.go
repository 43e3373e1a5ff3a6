package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"debtreminder-backend/models"
	"debtreminder-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const codeAttempts = 5

// AccountService backs the management API: verification codes, chat
// registrations, per-account settings and the reminder log.
type AccountService struct {
	store    Store
	resolver *Resolver
	selector *DebtSelector
	codeTTL  time.Duration
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewAccountService(store Store, codeTTL time.Duration, opts Options) *AccountService {
	opts = opts.withDefaults()
	if codeTTL <= 0 {
		codeTTL = 24 * time.Hour
	}
	return &AccountService{
		store:    store,
		resolver: NewResolver(store),
		selector: NewDebtSelector(store),
		codeTTL:  codeTTL,
		logger:   opts.Logger.With(slog.String("component", "accounts")),
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// VerificationCode returns the account's live code, issuing one if needed.
func (s *AccountService) VerificationCode(ctx context.Context, owner uuid.UUID) (models.VerificationCode, error) {
	now := s.now()
	vc, err := s.store.ActiveVerificationCode(ctx, owner, now)
	if err == nil {
		return vc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return vc, err
	}
	return s.issueCode(ctx, owner, now)
}

// RefreshVerificationCode retires any live code and issues a new one.
func (s *AccountService) RefreshVerificationCode(ctx context.Context, owner uuid.UUID) (models.VerificationCode, error) {
	now := s.now()
	if err := s.store.RetireVerificationCodes(ctx, owner, now); err != nil {
		return models.VerificationCode{}, err
	}
	return s.issueCode(ctx, owner, now)
}

func (s *AccountService) issueCode(ctx context.Context, owner uuid.UUID, now time.Time) (models.VerificationCode, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return models.VerificationCode{}, err
		}

		// Codes are looked up by value alone, so a live one must be unique.
		existing, err := s.store.FindVerificationCode(ctx, code)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return models.VerificationCode{}, err
		case checkCode(existing, now) == nil:
			continue
		}

		vc := models.VerificationCode{UserID: owner, Code: code, ExpiresAt: now.Add(s.codeTTL)}
		if err := s.store.CreateVerificationCode(ctx, &vc); err != nil {
			return vc, err
		}
		s.logger.Info("verification code issued", slog.String("user_id", owner.String()), slog.Time("expires_at", vc.ExpiresAt))
		return vc, nil
	}
	return models.VerificationCode{}, errors.New("could not generate a unique verification code")
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// TelegramStatus reports whether the account has a live owner chat.
type TelegramStatus struct {
	Connected bool       `json:"connected"`
	ChatID    int64      `json:"telegram_chat_id,omitempty"`
	Username  *string    `json:"telegram_username,omitempty"`
	Since     *time.Time `json:"connected_at,omitempty"`
}

func (s *AccountService) TelegramStatus(ctx context.Context, owner uuid.UUID) (TelegramStatus, error) {
	ep, err := s.resolver.OwnerEndpoint(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return TelegramStatus{}, nil
	}
	if err != nil {
		return TelegramStatus{}, err
	}
	reg := ep.Registration
	return TelegramStatus{Connected: true, ChatID: reg.TelegramChatID, Username: reg.TelegramUsername, Since: &reg.UpdatedAt}, nil
}

func (s *AccountService) DeactivateTelegram(ctx context.Context, owner uuid.UUID) (int64, error) {
	n, err := s.store.DeactivateOwnerRegistrations(ctx, owner)
	if err != nil {
		return 0, err
	}
	s.logger.Info("owner telegram deactivated", slog.String("user_id", owner.String()), slog.Int64("rows", n))
	return n, nil
}

func (s *AccountService) Registrations(ctx context.Context, owner uuid.UUID) ([]models.TelegramUser, error) {
	return s.store.ListAccountRegistrations(ctx, owner)
}

func (s *AccountService) SetRegistrationActive(ctx context.Context, owner, id uuid.UUID, active bool) (models.TelegramUser, error) {
	return s.store.SetRegistrationActive(ctx, owner, id, active)
}

// LinkCustomerChat attaches a chat that sent /start to a customer.
func (s *AccountService) LinkCustomerChat(ctx context.Context, link CustomerLink) (models.TelegramUser, error) {
	if link.ChatID == 0 || link.CustomerID == uuid.Nil {
		return models.TelegramUser{}, fmt.Errorf("%w: chat id and customer id are required", ErrInvalidInput)
	}
	return s.store.LinkCustomerChat(ctx, link)
}

func (s *AccountService) ReminderSettings(ctx context.Context, owner uuid.UUID) (models.ReminderSettings, error) {
	settings, err := s.store.GetReminderSettings(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultReminderSettings(owner), nil
	}
	return settings, err
}

type ReminderSettingsInput struct {
	ReminderDaysBefore []int
	ReminderTime       string
	TelegramEnabled    bool
	EmailEnabled       bool
}

func (s *AccountService) SaveReminderSettings(ctx context.Context, owner uuid.UUID, in ReminderSettingsInput) (models.ReminderSettings, error) {
	for _, d := range in.ReminderDaysBefore {
		if d < 0 || d > 365 {
			return models.ReminderSettings{}, fmt.Errorf("%w: reminder day %d out of range", ErrInvalidInput, d)
		}
	}
	if in.ReminderTime == "" {
		in.ReminderTime = "09:00"
	}
	if _, err := time.Parse("15:04", in.ReminderTime); err != nil {
		return models.ReminderSettings{}, fmt.Errorf("%w: reminder time %q", ErrInvalidInput, in.ReminderTime)
	}

	settings := models.ReminderSettings{
		UserID:             owner,
		ReminderDaysBefore: models.IntList(in.ReminderDaysBefore),
		ReminderTime:       in.ReminderTime,
		TelegramEnabled:    in.TelegramEnabled,
		EmailEnabled:       in.EmailEnabled,
	}
	if err := s.store.SaveReminderSettings(ctx, &settings); err != nil {
		return settings, err
	}
	return settings, nil
}

func (s *AccountService) NotificationPreference(ctx context.Context, owner uuid.UUID) (models.NotificationPreference, error) {
	pref, err := s.store.GetNotificationPreference(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultNotificationPreference(owner), nil
	}
	return pref, err
}

func (s *AccountService) SaveNotificationPreference(ctx context.Context, owner uuid.UUID, dailyEnabled bool, minimum decimal.NullDecimal) (models.NotificationPreference, error) {
	if minimum.Valid && minimum.Decimal.IsNegative() {
		return models.NotificationPreference{}, fmt.Errorf("%w: minimum debt amount must not be negative", ErrInvalidInput)
	}
	pref := models.NotificationPreference{UserID: owner, DailyEnabled: dailyEnabled, MinimumDebtAmount: minimum}
	if err := s.store.SaveNotificationPreference(ctx, &pref); err != nil {
		return pref, err
	}
	return pref, nil
}

func (s *AccountService) Reminders(ctx context.Context, owner uuid.UUID, debtID *uuid.UUID) ([]models.Reminder, error) {
	return s.store.ListReminders(ctx, owner, debtID)
}

// SetDebtStatus moves a debt between states. Paid is terminal.
func (s *AccountService) SetDebtStatus(ctx context.Context, owner, id uuid.UUID, status models.DebtStatus) (models.Debt, error) {
	switch status {
	case models.DebtPending, models.DebtPaid, models.DebtOverdue:
	default:
		return models.Debt{}, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	return s.store.UpdateDebtStatus(ctx, owner, id, status)
}

// DeleteCustomer removes the customer with its debts, reminders, orders,
// prescriptions and chat registrations.
func (s *AccountService) DeleteCustomer(ctx context.Context, owner, id uuid.UUID) error {
	if err := s.store.DeleteCustomer(ctx, owner, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", slog.String("user_id", owner.String()), slog.String("customer_id", id.String()))
	return nil
}

const overviewEntries = 5

// DebtOverview is the dashboard summary of an account's due debts.
type DebtOverview struct {
	OverdueCount  int             `json:"overdue_count"`
	DueTodayCount int             `json:"due_today_count"`
	TotalDue      decimal.Decimal `json:"total_due"`
	Oldest        []OverdueEntry  `json:"oldest"`
}

type OverdueEntry struct {
	DebtID       uuid.UUID       `json:"debt_id"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      string          `json:"due_date"`
	DaysOverdue  int             `json:"days_overdue"`
}

// Overview selects the same debts the overdue digest would report.
func (s *AccountService) Overview(ctx context.Context, owner uuid.UUID) (DebtOverview, error) {
	today := utils.Today(s.now(), s.loc)
	debts, err := s.selector.SelectDueDebts(ctx, OverdueAsOf(today), &owner)
	if err != nil {
		return DebtOverview{}, err
	}

	out := DebtOverview{TotalDue: decimal.Zero, Oldest: []OverdueEntry{}}
	for _, d := range debts {
		days := utils.DaysBetween(d.DueDate, today)
		if days > 0 {
			out.OverdueCount++
		} else {
			out.DueTodayCount++
		}
		out.TotalDue = out.TotalDue.Add(d.Amount)
		if len(out.Oldest) < overviewEntries {
			out.Oldest = append(out.Oldest, OverdueEntry{
				DebtID:       d.ID,
				CustomerName: d.Customer.Name,
				Amount:       d.Amount,
				DueDate:      utils.FormatDate(d.DueDate),
				DaysOverdue:  days,
			})
		}
	}
	return out, nil
}
