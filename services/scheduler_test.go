package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	reminders chan struct{}
	digests   chan struct{}
}

func (s *countingSweeper) RunReminderSweep(context.Context, *uuid.UUID) (SweepSummary, error) {
	s.reminders <- struct{}{}
	return SweepSummary{}, nil
}

func (s *countingSweeper) RunOverdueDigest(context.Context, *uuid.UUID) (DigestSummary, error) {
	s.digests <- struct{}{}
	return DigestSummary{}, ErrSweepInProgress
}

func TestSchedulerDisabledWithoutSpecs(t *testing.T) {
	c, err := StartReminderScheduler(context.Background(), &countingSweeper{}, "", "", nil, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := StartReminderScheduler(context.Background(), &countingSweeper{}, "every morning", "", time.UTC, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), TriggerSendReminders)
}

func TestSchedulerRunsConfiguredJobs(t *testing.T) {
	sw := &countingSweeper{reminders: make(chan struct{}, 16), digests: make(chan struct{}, 16)}
	c, err := StartReminderScheduler(context.Background(), sw, "@every 1s", "@every 1s", istanbul, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Stop()

	assert.Len(t, c.Entries(), 2)
	assert.Equal(t, istanbul, c.Location())

	for _, ch := range []chan struct{}{sw.reminders, sw.digests} {
		select {
		case <-ch:
		case <-time.After(3 * time.Second):
			t.Fatal("scheduled sweep did not run")
		}
	}
}
