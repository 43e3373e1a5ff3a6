package services

import (
	"context"
	"fmt"
	"time"

	"debtreminder-backend/models"

	"github.com/google/uuid"
)

// Deduplicator answers whether a debt already has a reminder of one kind
// and channel inside the current window. The pending row claimed before
// each send is the real guard; this check only skips work early.
type Deduplicator struct {
	store Store
}

func NewDeduplicator(store Store) *Deduplicator {
	return &Deduplicator{store: store}
}

func (d *Deduplicator) AlreadyNotified(ctx context.Context, debtID uuid.UUID, ch models.Channel, kind models.ReminderKind, windowStart time.Time) (bool, error) {
	n, err := d.store.CountReminders(ctx, ReminderQuery{DebtID: debtID, Channel: ch, Kind: kind, Since: windowStart})
	if err != nil {
		return false, fmt.Errorf("dedup debt %s via %s: %w", debtID, ch, err)
	}
	return n > 0, nil
}
