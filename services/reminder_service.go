// services/reminder_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"debtreminder-backend/models"
	"debtreminder-backend/utils"

	"github.com/google/uuid"
)

// Options carries the ambient collaborators shared by the services.
// Zero values fall back to sensible defaults.
type Options struct {
	Logger   *slog.Logger
	Location *time.Location
	Now      func() time.Time
	Lock     SweepLock
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Lock == nil {
		o.Lock = noopLock{}
	}
	return o
}

// SweepSummary is the result of the day-after-due reminder sweep.
type SweepSummary struct {
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

// DigestSummary is the result of the overdue digest sweep.
type DigestSummary struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Accounts  int  `json:"accounts"`
}

// OwnerAlert asks for one debt to be brought to its owner's attention.
type OwnerAlert struct {
	AccountID   uuid.UUID
	PhoneNumber string
	DebtID      uuid.UUID
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

// customerChannels is the order reminders go out in.
var customerChannels = []models.Channel{models.ChannelTelegram, models.ChannelEmail}

// ReminderService runs the reminder sweeps: select, dedup, resolve, compose,
// send and log, one debt and one channel at a time.
type ReminderService struct {
	store    Store
	selector *DebtSelector
	dedup    *Deduplicator
	resolver *Resolver
	telegram TelegramMessenger
	email    EmailMessenger
	lock     SweepLock
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewReminderService(store Store, telegram TelegramMessenger, email EmailMessenger, opts Options) *ReminderService {
	opts = opts.withDefaults()
	return &ReminderService{
		store:    store,
		selector: NewDebtSelector(store),
		dedup:    NewDeduplicator(store),
		resolver: NewResolver(store),
		telegram: telegram,
		email:    email,
		lock:     opts.Lock,
		logger:   opts.Logger.With(slog.String("component", "reminders")),
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// sweepClock fixes "now" for one sweep so every row agrees on the day.
type sweepClock struct {
	now         time.Time
	today       time.Time
	windowStart time.Time
}

func (s *ReminderService) clock() sweepClock {
	now := s.now()
	return sweepClock{
		now:         now,
		today:       utils.Today(now, s.loc),
		windowStart: utils.BeginningOfDay(now.In(s.loc)),
	}
}

// acquire takes the trigger-wide lock. Scoped and unscoped sweeps of one
// trigger share it. A lock that cannot be checked stops the sweep.
func (s *ReminderService) acquire(ctx context.Context, trigger string) (func(), error) {
	key := sweepLockKey(trigger)
	release, err := s.lock.Acquire(ctx, key)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Warn("sweep already running", slog.String("key", key))
		return nil, err
	case err != nil:
		s.logger.Error("sweep lock unavailable", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("sweep lock %s: %w", key, err)
	}
	return release, nil
}

// RunReminderSweep reminds customers whose debt fell due yesterday, on
// every channel their owner has enabled.
func (s *ReminderService) RunReminderSweep(ctx context.Context, owner *uuid.UUID) (SweepSummary, error) {
	clk := s.clock()
	summary := SweepSummary{Timestamp: clk.now}

	release, err := s.acquire(ctx, TriggerSendReminders)
	if err != nil {
		return summary, err
	}
	defer release()

	trigger := DayAfterDue(clk.today)
	debts, err := s.selector.SelectDueDebts(ctx, trigger, owner)
	if err != nil {
		return summary, err
	}
	summary.Processed = len(debts)
	if len(debts) == 0 {
		s.logger.Info("no debts to remind", slog.String("due_date", trigger.Date.Format(sqlDate)))
		return summary, nil
	}
	s.logger.Info("starting reminder sweep", slog.Int("debts", len(debts)), slog.String("due_date", trigger.Date.Format(sqlDate)))

	settings := make(map[uuid.UUID]models.ReminderSettings)
	for _, debt := range debts {
		cfg, err := s.reminderSettings(ctx, settings, debt.UserID)
		if err != nil {
			s.logger.Error("load reminder settings", slog.String("debt_id", debt.ID.String()), slog.Any("error", err))
			summary.Errors++
			continue
		}

		days := utils.DaysBetween(debt.DueDate, clk.today)
		var msg *Message
		compose := func() Message {
			if msg == nil {
				m := ComposeOverdueMessage(debt, days)
				msg = &m
			}
			return *msg
		}

		for _, ch := range customerChannels {
			if !cfg.ChannelEnabled(ch) {
				continue
			}
			switch s.remindCustomer(ctx, clk, debt, ch, compose) {
			case outcomeSent:
				summary.Sent++
			case outcomeFailed:
				summary.Errors++
			}
		}
	}

	s.logger.Info("reminder sweep completed",
		slog.Int("processed", summary.Processed), slog.Int("sent", summary.Sent), slog.Int("errors", summary.Errors))
	return summary, nil
}

func (s *ReminderService) remindCustomer(ctx context.Context, clk sweepClock, debt models.Debt, ch models.Channel, compose func() Message) outcome {
	log := s.logger.With(slog.String("debt_id", debt.ID.String()), slog.String("channel", string(ch)))

	notified, err := s.dedup.AlreadyNotified(ctx, debt.ID, ch, models.KindCustomerReminder, clk.windowStart)
	if err != nil {
		log.Error("dedup check failed, skipping", slog.Any("error", err))
		return outcomeFailed
	}
	if notified {
		log.Info("reminder already sent today")
		return outcomeSkipped
	}

	ep, err := s.resolver.Resolve(ctx, debt, ch, CustomerLinked)
	if errors.Is(err, ErrNotFound) {
		log.Info("no endpoint for customer", slog.Any("reason", err))
		return outcomeSkipped
	}
	if err != nil {
		log.Error("resolve endpoint", slog.Any("error", err))
		return outcomeFailed
	}

	row, err := s.claim(ctx, clk, debt, models.KindCustomerReminder, ch)
	if errors.Is(err, ErrDuplicateReminder) {
		log.Info("reminder already claimed today")
		return outcomeSkipped
	}
	if err != nil {
		log.Error("claim reminder", slog.Any("error", err))
		return outcomeFailed
	}

	msg := compose()
	var sendErr error
	switch ch {
	case models.ChannelTelegram:
		sendErr = s.telegram.SendTelegram(ctx, ep.ChatID, msg)
	case models.ChannelEmail:
		sendErr = s.email.SendEmail(ctx, ep.Email, msg)
	}

	s.settle(ctx, clk, row, msg, sendErr)
	if sendErr != nil {
		return outcomeFailed
	}
	log.Info("reminder sent")
	return outcomeSent
}

// RunOverdueDigest sends every owner one Telegram summary of their debts
// due today or earlier.
func (s *ReminderService) RunOverdueDigest(ctx context.Context, owner *uuid.UUID) (DigestSummary, error) {
	clk := s.clock()
	summary := DigestSummary{}

	release, err := s.acquire(ctx, TriggerCheckOverdueDebts)
	if err != nil {
		return summary, err
	}
	defer release()

	debts, err := s.selector.SelectDueDebts(ctx, OverdueAsOf(clk.today), owner)
	if err != nil {
		return summary, err
	}
	summary.Success = true
	summary.Processed = len(debts)
	if len(debts) == 0 {
		s.logger.Info("no overdue debts found")
		return summary, nil
	}

	groups := GroupByOwner(debts)
	summary.Accounts = len(groups)
	for _, g := range groups {
		switch s.notifyOwner(ctx, clk, g) {
		case outcomeSent:
			summary.Sent++
		case outcomeFailed:
			summary.Failed++
		}
	}

	s.logger.Info("overdue digest completed",
		slog.Int("debts", summary.Processed), slog.Int("accounts", summary.Accounts),
		slog.Int("sent", summary.Sent), slog.Int("failed", summary.Failed))
	return summary, nil
}

func (s *ReminderService) notifyOwner(ctx context.Context, clk sweepClock, g OwnerGroup) outcome {
	log := s.logger.With(slog.String("user_id", g.OwnerID.String()))

	pref, err := s.store.GetNotificationPreference(ctx, g.OwnerID)
	switch {
	case errors.Is(err, ErrNotFound):
		pref = models.DefaultNotificationPreference(g.OwnerID)
	case err != nil:
		log.Error("load notification preference", slog.Any("error", err))
		return outcomeFailed
	}
	if !pref.DailyEnabled {
		log.Info("daily notifications disabled")
		return outcomeSkipped
	}

	var eligible []models.Debt
	failed := false
	for _, d := range g.Debts {
		if !pref.Admits(d.Amount) {
			continue
		}
		notified, err := s.dedup.AlreadyNotified(ctx, d.ID, models.ChannelTelegram, models.KindOwnerDigest, clk.windowStart)
		if err != nil {
			log.Error("dedup check failed, leaving debt out", slog.String("debt_id", d.ID.String()), slog.Any("error", err))
			failed = true
			continue
		}
		if !notified {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		log.Info("nothing new to report")
		if failed {
			return outcomeFailed
		}
		return outcomeSkipped
	}

	ep, err := s.resolver.Resolve(ctx, eligible[0], models.ChannelTelegram, BusinessOwner)
	if errors.Is(err, ErrNotFound) {
		log.Info("owner has no active telegram registration")
		return outcomeSkipped
	}
	if err != nil {
		log.Error("resolve owner endpoint", slog.Any("error", err))
		return outcomeFailed
	}

	var (
		claimed []models.Debt
		rows    []*models.Reminder
	)
	for _, d := range eligible {
		row, err := s.claim(ctx, clk, d, models.KindOwnerDigest, models.ChannelTelegram)
		switch {
		case errors.Is(err, ErrDuplicateReminder):
			continue
		case err != nil:
			log.Error("claim digest row, leaving debt out", slog.String("debt_id", d.ID.String()), slog.Any("error", err))
			failed = true
			continue
		}
		claimed = append(claimed, d)
		rows = append(rows, row)
	}
	if len(claimed) == 0 {
		log.Info("digest already claimed today")
		if failed {
			return outcomeFailed
		}
		return outcomeSkipped
	}

	msg := ComposeOwnerDigest(claimed, clk.today)
	sendErr := s.telegram.SendTelegram(ctx, ep.ChatID, msg)
	for _, row := range rows {
		s.settle(ctx, clk, row, msg, sendErr)
	}
	if sendErr != nil {
		return outcomeFailed
	}
	log.Info("overdue digest sent", slog.Int("debts", len(claimed)))
	return outcomeSent
}

// SendOwnerAlert pushes one debt to its owner's Telegram chat.
func (s *ReminderService) SendOwnerAlert(ctx context.Context, req OwnerAlert) error {
	if req.PhoneNumber == "" || req.DebtID == uuid.Nil {
		return fmt.Errorf("%w: phone number and debt id are required", ErrInvalidInput)
	}

	debt, err := s.store.GetDebt(ctx, req.DebtID)
	if err != nil {
		return err
	}
	if debt.UserID != req.AccountID {
		return fmt.Errorf("debt %s: %w", req.DebtID, ErrNotFound)
	}

	ep, err := s.resolver.Resolve(ctx, debt, models.ChannelTelegram, BusinessOwner)
	if errors.Is(err, ErrNotFound) {
		return ErrOwnerNotRegistered
	}
	if err != nil {
		return err
	}

	clk := s.clock()
	row, err := s.claim(ctx, clk, debt, models.KindOwnerAlert, models.ChannelTelegram)
	if err != nil {
		return err
	}
	msg := ComposeOwnerAlert(debt, utils.DaysBetween(debt.DueDate, clk.today))
	sendErr := s.telegram.SendTelegram(ctx, ep.ChatID, msg)
	s.settle(ctx, clk, row, msg, sendErr)
	if sendErr != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
	}

	s.logger.Info("owner alert sent", slog.String("debt_id", debt.ID.String()), slog.String("phone", req.PhoneNumber))
	return nil
}

func (s *ReminderService) reminderSettings(ctx context.Context, cache map[uuid.UUID]models.ReminderSettings, owner uuid.UUID) (models.ReminderSettings, error) {
	if cfg, ok := cache[owner]; ok {
		return cfg, nil
	}
	cfg, err := s.store.GetReminderSettings(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		cfg, err = models.DefaultReminderSettings(owner), nil
	}
	if err != nil {
		return cfg, err
	}
	cache[owner] = cfg
	return cfg, nil
}

// claim inserts the pending log row for one delivery before anything is
// sent. The daily guard index turns a second claim for the same debt,
// channel, kind and day into ErrDuplicateReminder, so only one sweep sends.
func (s *ReminderService) claim(ctx context.Context, clk sweepClock, debt models.Debt, kind models.ReminderKind, ch models.Channel) (*models.Reminder, error) {
	r := &models.Reminder{
		DebtID:        debt.ID,
		UserID:        debt.UserID,
		Kind:          kind,
		ReminderType:  ch,
		Status:        models.ReminderPending,
		ScheduledDate: clk.now,
		ReminderDay:   clk.today,
	}
	if err := s.store.CreateReminder(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// settle records how a claimed delivery went.
func (s *ReminderService) settle(ctx context.Context, clk sweepClock, r *models.Reminder, msg Message, sendErr error) {
	r.MessageContent = msg.Plain()
	if sendErr == nil {
		r.Status = models.ReminderSent
		sentAt := clk.now
		r.SentAt = &sentAt
	} else {
		r.Status = models.ReminderFailed
		detail := sendErr.Error()
		r.ErrorMessage = &detail
	}

	if err := s.store.SettleReminder(context.WithoutCancel(ctx), r); err != nil {
		s.logger.Error("settle reminder log",
			slog.String("debt_id", r.DebtID.String()), slog.String("channel", string(r.ReminderType)),
			slog.String("status", string(r.Status)), slog.Any("error", err))
	}
}
