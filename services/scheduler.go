package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const scheduledSweepTimeout = 10 * time.Minute

// Sweeper is what the scheduler and the HTTP triggers both call.
type Sweeper interface {
	RunReminderSweep(ctx context.Context, owner *uuid.UUID) (SweepSummary, error)
	RunOverdueDigest(ctx context.Context, owner *uuid.UUID) (DigestSummary, error)
}

// StartReminderScheduler registers the sweeps whose cron spec is set and
// starts the scheduler. It returns nil when neither is configured.
func StartReminderScheduler(ctx context.Context, sweeper Sweeper, reminderSpec, digestSpec string, loc *time.Location, logger *slog.Logger) (*cron.Cron, error) {
	if reminderSpec == "" && digestSpec == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (any, error)
	}{
		{TriggerSendReminders, reminderSpec, func(ctx context.Context) (any, error) {
			return sweeper.RunReminderSweep(ctx, nil)
		}},
		{TriggerCheckOverdueDebts, digestSpec, func(ctx context.Context) (any, error) {
			return sweeper.RunOverdueDigest(ctx, nil)
		}},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		job := job
		if _, err := c.AddFunc(job.spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, scheduledSweepTimeout)
			defer cancel()

			summary, err := job.run(runCtx)
			switch {
			case errors.Is(err, ErrSweepInProgress):
				logger.Warn("scheduled sweep skipped, another run holds the lock", slog.String("job", job.name))
			case err != nil:
				logger.Error("scheduled sweep failed", slog.String("job", job.name), slog.Any("error", err))
			default:
				logger.Info("scheduled sweep finished", slog.String("job", job.name), slog.Any("summary", summary))
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
	}

	c.Start()
	logger.Info("reminder scheduler started", slog.String("reminders", reminderSpec), slog.String("digest", digestSpec))
	return c, nil
}
