package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"debtreminder-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sqlDate = "2006-01-02"

// GormStore implements Store on PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *GormStore) ListPendingDebts(ctx context.Context, f DebtFilter) ([]models.Debt, error) {
	q := s.db.WithContext(ctx).
		InnerJoins("Customer").
		Where("debts.status = ?", models.DebtPending)

	date := f.Date.Format(sqlDate)
	switch f.Rule {
	case DueExactly:
		q = q.Where("debts.due_date = ?", date)
	case DueOnOrBefore:
		q = q.Where("debts.due_date <= ?", date)
	default:
		return nil, fmt.Errorf("%w: selection rule %d", ErrInvalidInput, f.Rule)
	}
	if f.OwnerID != nil {
		q = q.Where("debts.user_id = ?", *f.OwnerID)
	}

	var debts []models.Debt
	if err := q.Order("debts.due_date ASC").Order("debts.created_at ASC").Find(&debts).Error; err != nil {
		return nil, fmt.Errorf("list pending debts: %w", err)
	}
	return debts, nil
}

func (s *GormStore) GetDebt(ctx context.Context, id uuid.UUID) (models.Debt, error) {
	var debt models.Debt
	err := s.db.WithContext(ctx).InnerJoins("Customer").Where("debts.id = ?", id).First(&debt).Error
	if err != nil {
		return debt, notFound(err, "get debt")
	}
	return debt, nil
}

func (s *GormStore) UpdateDebtStatus(ctx context.Context, ownerID, id uuid.UUID, status models.DebtStatus) (models.Debt, error) {
	var debt models.Debt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, ownerID).First(&debt).Error; err != nil {
			return notFound(err, "get debt")
		}
		if debt.Status == models.DebtPaid && status != models.DebtPaid {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, debt.Status, status)
		}
		debt.Status = status
		return tx.Model(&debt).Update("status", status).Error
	})
	return debt, err
}

func (s *GormStore) CountReminders(ctx context.Context, q ReminderQuery) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("debt_id = ? AND reminder_type = ? AND kind = ? AND created_at >= ?", q.DebtID, q.Channel, q.Kind, q.Since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return n, nil
}

func (s *GormStore) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReminder
		}
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// SettleReminder records the outcome of a claimed delivery.
func (s *GormStore) SettleReminder(ctx context.Context, r *models.Reminder) error {
	res := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ? AND status = ?", r.ID, models.ReminderPending).
		Updates(map[string]interface{}{
			"status":          r.Status,
			"sent_at":         r.SentAt,
			"message_content": r.MessageContent,
			"error_message":   r.ErrorMessage,
		})
	if res.Error != nil {
		return fmt.Errorf("settle reminder: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("settle reminder %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) ListReminders(ctx context.Context, ownerID uuid.UUID, debtID *uuid.UUID) ([]models.Reminder, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if debtID != nil {
		q = q.Where("debt_id = ?", *debtID)
	}
	var out []models.Reminder
	if err := q.Order("created_at DESC").Limit(500).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

func (s *GormStore) GetReminderSettings(ctx context.Context, ownerID uuid.UUID) (models.ReminderSettings, error) {
	var settings models.ReminderSettings
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).First(&settings).Error; err != nil {
		return settings, notFound(err, "get reminder settings")
	}
	return settings, nil
}

func (s *GormStore) SaveReminderSettings(ctx context.Context, settings *models.ReminderSettings) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reminder_days_before", "reminder_time", "telegram_enabled", "email_enabled", "updated_at"}),
	}).Create(settings).Error
	if err != nil {
		return fmt.Errorf("save reminder settings: %w", err)
	}
	return nil
}

func (s *GormStore) GetNotificationPreference(ctx context.Context, ownerID uuid.UUID) (models.NotificationPreference, error) {
	var pref models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).First(&pref).Error; err != nil {
		return pref, notFound(err, "get notification preference")
	}
	return pref, nil
}

func (s *GormStore) SaveNotificationPreference(ctx context.Context, pref *models.NotificationPreference) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_enabled", "minimum_debt_amount", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("save notification preference: %w", err)
	}
	return nil
}

func (s *GormStore) FindActiveRegistrations(ctx context.Context, q RegistrationQuery, limit int) ([]models.TelegramUser, error) {
	db := s.db.WithContext(ctx).Where("is_active = ? AND user_type = ?", true, q.Role)
	switch {
	case q.CustomerID != nil:
		db = db.Where("customer_id = ?", *q.CustomerID)
	case q.OwnerID != nil:
		db = db.Where("user_id = ?", *q.OwnerID)
	default:
		return nil, fmt.Errorf("%w: registration query without key", ErrInvalidInput)
	}

	var regs []models.TelegramUser
	if err := db.Order("updated_at DESC").Limit(limit).Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("find registrations: %w", err)
	}
	return regs, nil
}

func (s *GormStore) ChatRegistrations(ctx context.Context, chatID int64) ([]models.TelegramUser, error) {
	var regs []models.TelegramUser
	if err := s.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("chat registrations: %w", err)
	}
	return regs, nil
}

func (s *GormStore) ListAccountRegistrations(ctx context.Context, ownerID uuid.UUID) ([]models.TelegramUser, error) {
	var regs []models.TelegramUser
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at DESC").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func (s *GormStore) CreateRegistration(ctx context.Context, reg *models.TelegramUser) error {
	if err := s.db.WithContext(ctx).Create(reg).Error; err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (s *GormStore) SetRegistrationActive(ctx context.Context, ownerID, id uuid.UUID, active bool) (models.TelegramUser, error) {
	var reg models.TelegramUser
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&reg).Error; err != nil {
			return notFound(err, "get registration")
		}
		if active && reg.UserType == models.RoleBusinessOwner {
			if err := tx.Model(&models.TelegramUser{}).
				Where("user_id = ? AND user_type = ? AND id <> ?", ownerID, models.RoleBusinessOwner, id).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		reg.IsActive = active
		return tx.Model(&reg).Update("is_active", active).Error
	})
	return reg, err
}

func (s *GormStore) LinkCustomerChat(ctx context.Context, link CustomerLink) (models.TelegramUser, error) {
	var reg models.TelegramUser
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.Where("id = ? AND user_id = ?", link.CustomerID, link.OwnerID).First(&customer).Error; err != nil {
			return notFound(err, "get customer")
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("telegram_chat_id = ? AND user_type = ?", link.ChatID, models.RoleCustomer).
			First(&reg).Error
		existing := err == nil
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case reg.UserID != nil && *reg.UserID != link.OwnerID:
			// Chats linked by another account are not visible here.
			return fmt.Errorf("telegram chat %d: %w", link.ChatID, ErrNotFound)
		}

		// One active chat per customer keeps resolution unambiguous.
		if err := tx.Model(&models.TelegramUser{}).
			Where("customer_id = ? AND telegram_chat_id <> ?", link.CustomerID, link.ChatID).
			Update("is_active", false).Error; err != nil {
			return err
		}

		if !existing {
			reg = models.TelegramUser{
				TelegramChatID: link.ChatID,
				UserID:         &link.OwnerID,
				CustomerID:     &link.CustomerID,
				UserType:       models.RoleCustomer,
				IsActive:       true,
			}
			return tx.Create(&reg).Error
		}

		reg.UserID = &link.OwnerID
		reg.CustomerID = &link.CustomerID
		reg.IsActive = true
		return tx.Model(&reg).Updates(map[string]interface{}{
			"user_id":     link.OwnerID,
			"customer_id": link.CustomerID,
			"is_active":   true,
		}).Error
	})
	return reg, err
}

func (s *GormStore) DeactivateOwnerRegistrations(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.TelegramUser{}).
		Where("user_id = ? AND user_type = ? AND is_active = ?", ownerID, models.RoleBusinessOwner, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate owner registrations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ClaimOwnerRegistration consumes the code and activates the chat as the
// account's only owner registration, all or nothing.
func (s *GormStore) ClaimOwnerRegistration(ctx context.Context, claim OwnerClaim) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.VerificationCode{}).
			Where("id = ? AND user_id = ? AND used = ? AND expires_at > ?", claim.CodeID, claim.OwnerID, false, claim.Now).
			Update("used", true)
		if res.Error != nil {
			return fmt.Errorf("consume verification code: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrCodeUsed
		}

		if err := tx.Model(&models.TelegramUser{}).
			Where("user_id = ? AND user_type = ? AND telegram_chat_id <> ?", claim.OwnerID, models.RoleBusinessOwner, claim.ChatID).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate previous owner chats: %w", err)
		}

		var reg models.TelegramUser
		err := tx.Where("telegram_chat_id = ? AND user_type = ?", claim.ChatID, models.RoleBusinessOwner).First(&reg).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			reg = models.TelegramUser{
				TelegramChatID:   claim.ChatID,
				TelegramUsername: claim.Username,
				UserID:           &claim.OwnerID,
				UserType:         models.RoleBusinessOwner,
				IsActive:         true,
			}
			return tx.Create(&reg).Error
		case err != nil:
			return err
		}
		return tx.Model(&reg).Updates(map[string]interface{}{
			"user_id":           claim.OwnerID,
			"telegram_username": claim.Username,
			"is_active":         true,
		}).Error
	})
}

func (s *GormStore) FindVerificationCode(ctx context.Context, code string) (models.VerificationCode, error) {
	var vc models.VerificationCode
	if err := s.db.WithContext(ctx).Where("code = ?", code).Order("created_at DESC").First(&vc).Error; err != nil {
		return vc, notFound(err, "find verification code")
	}
	return vc, nil
}

func (s *GormStore) ActiveVerificationCode(ctx context.Context, ownerID uuid.UUID, now time.Time) (models.VerificationCode, error) {
	var vc models.VerificationCode
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND used = ? AND expires_at > ?", ownerID, false, now).
		Order("created_at DESC").First(&vc).Error
	if err != nil {
		return vc, notFound(err, "active verification code")
	}
	return vc, nil
}

func (s *GormStore) CreateVerificationCode(ctx context.Context, code *models.VerificationCode) error {
	if err := s.db.WithContext(ctx).Create(code).Error; err != nil {
		return fmt.Errorf("create verification code: %w", err)
	}
	return nil
}

func (s *GormStore) RetireVerificationCodes(ctx context.Context, ownerID uuid.UUID, now time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("user_id = ? AND used = ? AND expires_at > ?", ownerID, false, now).
		Update("expires_at", now).Error
	if err != nil {
		return fmt.Errorf("retire verification codes: %w", err)
	}
	return nil
}

func (s *GormStore) FindCustomersByPhone(ctx context.Context, ownerID uuid.UUID, normalized string, limit int) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND phone_normalized = ?", ownerID, normalized).
		Limit(limit).Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("find customers by phone: %w", err)
	}
	return customers, nil
}

// DeleteCustomer removes a customer and everything that hangs off it.
func (s *GormStore) DeleteCustomer(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&customer).Error; err != nil {
			return notFound(err, "get customer")
		}

		var debtIDs []uuid.UUID
		if err := tx.Model(&models.Debt{}).Where("customer_id = ?", id).Pluck("id", &debtIDs).Error; err != nil {
			return fmt.Errorf("list customer debts: %w", err)
		}
		if len(debtIDs) > 0 {
			if err := tx.Where("debt_id IN ?", debtIDs).Delete(&models.Reminder{}).Error; err != nil {
				return fmt.Errorf("delete reminders: %w", err)
			}
		}

		dependents := []struct {
			name  string
			model interface{}
		}{
			{"debts", &models.Debt{}},
			{"prescriptions", &models.Prescription{}},
			{"orders", &models.Order{}},
			{"telegram users", &models.TelegramUser{}},
		}
		for _, d := range dependents {
			if err := tx.Where("customer_id = ?", id).Delete(d.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", d.name, err)
			}
		}
		if err := tx.Delete(&customer).Error; err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		return nil
	})
}

func (s *GormStore) LogTelegramMessage(ctx context.Context, m *models.TelegramMessage) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("log telegram message: %w", err)
	}
	return nil
}
