package services

import (
	"context"
	"fmt"
	"time"

	"debtreminder-backend/models"

	"github.com/google/uuid"
)

// Trigger names a sweep and the rule it selects debts with.
type Trigger struct {
	Name string
	Rule SelectionRule
	Date time.Time
}

const (
	TriggerSendReminders     = "send-reminders"
	TriggerCheckOverdueDebts = "check-overdue-debts"
)

// DayAfterDue picks debts that fell due yesterday.
func DayAfterDue(today time.Time) Trigger {
	return Trigger{Name: TriggerSendReminders, Rule: DueExactly, Date: today.AddDate(0, 0, -1)}
}

// OverdueAsOf picks every debt due today or earlier.
func OverdueAsOf(today time.Time) Trigger {
	return Trigger{Name: TriggerCheckOverdueDebts, Rule: DueOnOrBefore, Date: today}
}

type DebtSelector struct {
	store Store
}

func NewDebtSelector(store Store) *DebtSelector {
	return &DebtSelector{store: store}
}

// SelectDueDebts returns pending debts, with their customer, matching the
// trigger's rule and the optional owner filter.
func (s *DebtSelector) SelectDueDebts(ctx context.Context, t Trigger, owner *uuid.UUID) ([]models.Debt, error) {
	debts, err := s.store.ListPendingDebts(ctx, DebtFilter{Rule: t.Rule, Date: t.Date, OwnerID: owner})
	if err != nil {
		return nil, fmt.Errorf("select debts for %s: %w", t.Name, err)
	}
	return debts, nil
}

// OwnerGroup is the set of debts owed to one business account.
type OwnerGroup struct {
	OwnerID uuid.UUID
	Debts   []models.Debt
}

// GroupByOwner keeps the order in which owners first appear.
func GroupByOwner(debts []models.Debt) []OwnerGroup {
	index := make(map[uuid.UUID]int)
	var groups []OwnerGroup
	for _, d := range debts {
		i, ok := index[d.UserID]
		if !ok {
			i = len(groups)
			index[d.UserID] = i
			groups = append(groups, OwnerGroup{OwnerID: d.UserID})
		}
		groups[i].Debts = append(groups[i].Debts, d)
	}
	return groups
}
