package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"debtreminder-backend/models"
	"debtreminder-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memStore is an in-memory Store with the same guards as the database.
type memStore struct {
	mu sync.Mutex

	customers []models.Customer
	debts     []models.Debt
	reminders []models.Reminder
	settings  map[uuid.UUID]models.ReminderSettings
	prefs     map[uuid.UUID]models.NotificationPreference
	regs      []models.TelegramUser
	codes     []models.VerificationCode
	messages  []models.TelegramMessage

	listErr  error
	countErr error
	regErr   error
	logErr   error
}

func newMemStore() *memStore {
	return &memStore{
		settings: map[uuid.UUID]models.ReminderSettings{},
		prefs:    map[uuid.UUID]models.NotificationPreference{},
	}
}

func (m *memStore) addCustomer(owner uuid.UUID, name, email, phone string) models.Customer {
	c := models.Customer{ID: uuid.New(), UserID: owner, Name: name, Email: email}
	if phone != "" {
		c.Phone = &phone
		c.PhoneNormalized = utils.NormalizePhone(phone)
	}
	m.customers = append(m.customers, c)
	return c
}

func (m *memStore) addDebt(c models.Customer, amount string, due time.Time, status models.DebtStatus) models.Debt {
	d := models.Debt{
		ID:         uuid.New(),
		UserID:     c.UserID,
		CustomerID: c.ID,
		Amount:     mustDecimal(amount),
		DueDate:    utils.DateOnly(due),
		Status:     status,
	}
	m.debts = append(m.debts, d)
	return d
}

func (m *memStore) addRegistration(reg models.TelegramUser) models.TelegramUser {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	m.regs = append(m.regs, reg)
	return reg
}

func (m *memStore) customer(id uuid.UUID) (models.Customer, bool) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, true
		}
	}
	return models.Customer{}, false
}

func (m *memStore) ListPendingDebts(_ context.Context, f DebtFilter) ([]models.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.Debt
	date := utils.DateOnly(f.Date)
	for _, d := range m.debts {
		if d.Status != models.DebtPending {
			continue
		}
		if f.OwnerID != nil && d.UserID != *f.OwnerID {
			continue
		}
		due := utils.DateOnly(d.DueDate)
		switch f.Rule {
		case DueExactly:
			if !due.Equal(date) {
				continue
			}
		case DueOnOrBefore:
			if due.After(date) {
				continue
			}
		default:
			return nil, ErrInvalidInput
		}
		c, ok := m.customer(d.CustomerID)
		if !ok {
			continue
		}
		d.Customer = c
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (m *memStore) GetDebt(_ context.Context, id uuid.UUID) (models.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.debts {
		if d.ID == id {
			d.Customer, _ = m.customer(d.CustomerID)
			return d, nil
		}
	}
	return models.Debt{}, ErrNotFound
}

func (m *memStore) UpdateDebtStatus(_ context.Context, owner, id uuid.UUID, status models.DebtStatus) (models.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.debts {
		if d.ID == id && d.UserID == owner {
			if d.Status == models.DebtPaid && status != models.DebtPaid {
				return d, ErrInvalidTransition
			}
			m.debts[i].Status = status
			return m.debts[i], nil
		}
	}
	return models.Debt{}, ErrNotFound
}

func (m *memStore) CountReminders(_ context.Context, q ReminderQuery) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, r := range m.reminders {
		if r.DebtID == q.DebtID && r.ReminderType == q.Channel && r.Kind == q.Kind && !r.CreatedAt.Before(q.Since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateReminder(_ context.Context, r *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Kind != models.KindOwnerAlert {
		for _, e := range m.reminders {
			if e.DebtID == r.DebtID && e.ReminderType == r.ReminderType && e.Kind == r.Kind && e.ReminderDay.Equal(r.ReminderDay) {
				return ErrDuplicateReminder
			}
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = r.ScheduledDate
	m.reminders = append(m.reminders, *r)
	return nil
}

func (m *memStore) SettleReminder(_ context.Context, r *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.reminders {
		if e.ID == r.ID && e.Status == models.ReminderPending {
			m.reminders[i].Status = r.Status
			m.reminders[i].SentAt = r.SentAt
			m.reminders[i].MessageContent = r.MessageContent
			m.reminders[i].ErrorMessage = r.ErrorMessage
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) ListReminders(_ context.Context, owner uuid.UUID, debtID *uuid.UUID) ([]models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reminder
	for _, r := range m.reminders {
		if r.UserID == owner && (debtID == nil || r.DebtID == *debtID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetReminderSettings(_ context.Context, owner uuid.UUID) (models.ReminderSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[owner]
	if !ok {
		return s, ErrNotFound
	}
	return s, nil
}

func (m *memStore) SaveReminderSettings(_ context.Context, s *models.ReminderSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.UserID] = *s
	return nil
}

func (m *memStore) GetNotificationPreference(_ context.Context, owner uuid.UUID) (models.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[owner]
	if !ok {
		return p, ErrNotFound
	}
	return p, nil
}

func (m *memStore) SaveNotificationPreference(_ context.Context, p *models.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[p.UserID] = *p
	return nil
}

func (m *memStore) FindActiveRegistrations(_ context.Context, q RegistrationQuery, limit int) ([]models.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regErr != nil {
		return nil, m.regErr
	}
	var out []models.TelegramUser
	for _, r := range m.regs {
		if !r.IsActive || r.UserType != q.Role {
			continue
		}
		switch {
		case q.CustomerID != nil:
			if r.CustomerID == nil || *r.CustomerID != *q.CustomerID {
				continue
			}
		case q.OwnerID != nil:
			if r.UserID == nil || *r.UserID != *q.OwnerID {
				continue
			}
		default:
			return nil, ErrInvalidInput
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) ChatRegistrations(_ context.Context, chatID int64) ([]models.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regErr != nil {
		return nil, m.regErr
	}
	var out []models.TelegramUser
	for _, r := range m.regs {
		if r.TelegramChatID == chatID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListAccountRegistrations(_ context.Context, owner uuid.UUID) ([]models.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TelegramUser
	for _, r := range m.regs {
		if r.UserID != nil && *r.UserID == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CreateRegistration(_ context.Context, reg *models.TelegramUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.TelegramChatID == reg.TelegramChatID && r.UserType == reg.UserType {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	reg.ID = uuid.New()
	m.regs = append(m.regs, *reg)
	return nil
}

func (m *memStore) SetRegistrationActive(_ context.Context, owner, id uuid.UUID, active bool) (models.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.regs {
		if r.ID == id && r.UserID != nil && *r.UserID == owner {
			m.regs[i].IsActive = active
			return m.regs[i], nil
		}
	}
	return models.TelegramUser{}, ErrNotFound
}

func (m *memStore) LinkCustomerChat(_ context.Context, link CustomerLink) (models.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customer(link.CustomerID)
	if !ok || c.UserID != link.OwnerID {
		return models.TelegramUser{}, ErrNotFound
	}
	for i, r := range m.regs {
		if r.TelegramChatID == link.ChatID && r.UserType == models.RoleCustomer {
			if r.UserID != nil && *r.UserID != link.OwnerID {
				return models.TelegramUser{}, ErrNotFound
			}
			for j, o := range m.regs {
				if o.CustomerID != nil && *o.CustomerID == link.CustomerID && o.TelegramChatID != link.ChatID {
					m.regs[j].IsActive = false
				}
			}
			m.regs[i].UserID = &link.OwnerID
			m.regs[i].CustomerID = &link.CustomerID
			m.regs[i].IsActive = true
			return m.regs[i], nil
		}
	}
	for j, o := range m.regs {
		if o.CustomerID != nil && *o.CustomerID == link.CustomerID {
			m.regs[j].IsActive = false
		}
	}
	reg := models.TelegramUser{ID: uuid.New(), TelegramChatID: link.ChatID, UserID: &link.OwnerID,
		CustomerID: &link.CustomerID, UserType: models.RoleCustomer, IsActive: true}
	m.regs = append(m.regs, reg)
	return reg, nil
}

func (m *memStore) DeactivateOwnerRegistrations(_ context.Context, owner uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i, r := range m.regs {
		if r.UserType == models.RoleBusinessOwner && r.IsActive && r.UserID != nil && *r.UserID == owner {
			m.regs[i].IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memStore) ClaimOwnerRegistration(_ context.Context, claim OwnerClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	consumed := false
	for i, c := range m.codes {
		if c.ID == claim.CodeID && c.UserID == claim.OwnerID && !c.Used && c.ExpiresAt.After(claim.Now) {
			m.codes[i].Used = true
			consumed = true
		}
	}
	if !consumed {
		return ErrCodeUsed
	}

	found := false
	for i, r := range m.regs {
		if r.UserType != models.RoleBusinessOwner {
			continue
		}
		if r.TelegramChatID == claim.ChatID {
			owner := claim.OwnerID
			m.regs[i].UserID = &owner
			m.regs[i].IsActive = true
			found = true
			continue
		}
		if r.UserID != nil && *r.UserID == claim.OwnerID {
			m.regs[i].IsActive = false
		}
	}
	if !found {
		owner := claim.OwnerID
		m.regs = append(m.regs, models.TelegramUser{ID: uuid.New(), TelegramChatID: claim.ChatID,
			TelegramUsername: claim.Username, UserID: &owner, UserType: models.RoleBusinessOwner, IsActive: true})
	}
	return nil
}

func (m *memStore) FindVerificationCode(_ context.Context, code string) (models.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		if m.codes[i].Code == code {
			return m.codes[i], nil
		}
	}
	return models.VerificationCode{}, ErrNotFound
}

func (m *memStore) ActiveVerificationCode(_ context.Context, owner uuid.UUID, now time.Time) (models.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		c := m.codes[i]
		if c.UserID == owner && !c.Used && c.ExpiresAt.After(now) {
			return c, nil
		}
	}
	return models.VerificationCode{}, ErrNotFound
}

func (m *memStore) CreateVerificationCode(_ context.Context, code *models.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code.ID = uuid.New()
	m.codes = append(m.codes, *code)
	return nil
}

func (m *memStore) RetireVerificationCodes(_ context.Context, owner uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.codes {
		if c.UserID == owner && !c.Used && c.ExpiresAt.After(now) {
			m.codes[i].ExpiresAt = now
		}
	}
	return nil
}

func (m *memStore) FindCustomersByPhone(_ context.Context, owner uuid.UUID, normalized string, limit int) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Customer
	for _, c := range m.customers {
		if c.UserID == owner && c.PhoneNormalized == normalized {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) DeleteCustomer(_ context.Context, owner, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, c := range m.customers {
		if c.ID == id && c.UserID == owner {
			idx = i
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	m.customers = append(m.customers[:idx], m.customers[idx+1:]...)

	gone := map[uuid.UUID]bool{}
	var debts []models.Debt
	for _, d := range m.debts {
		if d.CustomerID == id {
			gone[d.ID] = true
			continue
		}
		debts = append(debts, d)
	}
	m.debts = debts

	var reminders []models.Reminder
	for _, r := range m.reminders {
		if !gone[r.DebtID] {
			reminders = append(reminders, r)
		}
	}
	m.reminders = reminders

	var regs []models.TelegramUser
	for _, r := range m.regs {
		if r.CustomerID == nil || *r.CustomerID != id {
			regs = append(regs, r)
		}
	}
	m.regs = regs
	return nil
}

func (m *memStore) LogTelegramMessage(_ context.Context, msg *models.TelegramMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) remindersFor(debtID uuid.UUID) []models.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reminder
	for _, r := range m.reminders {
		if r.DebtID == debtID {
			out = append(out, r)
		}
	}
	return out
}

type telegramCall struct {
	chatID int64
	msg    Message
}

type fakeTelegram struct {
	mu    sync.Mutex
	calls []telegramCall
	fail  map[int64]error
}

func (f *fakeTelegram) SendTelegram(_ context.Context, chatID int64, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, telegramCall{chatID: chatID, msg: msg})
	if err, ok := f.fail[chatID]; ok {
		return err
	}
	return nil
}

func (f *fakeTelegram) to(chatID int64) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, c := range f.calls {
		if c.chatID == chatID {
			out = append(out, c.msg)
		}
	}
	return out
}

type emailCall struct {
	to  EmailAddress
	msg Message
}

type fakeEmail struct {
	mu    sync.Mutex
	calls []emailCall
	err   error
}

func (f *fakeEmail) SendEmail(_ context.Context, to EmailAddress, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, emailCall{to: to, msg: msg})
	return f.err
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string) (func(), error) { return nil, ErrSweepInProgress }
