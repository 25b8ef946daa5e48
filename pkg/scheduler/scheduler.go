// Package scheduler delivers stored reminders. A single loop scans for
// due reminders and speaks them through the gateway when the target
// device is online and quiet; recurring reminders re-arm themselves.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxpod/voxpod/pkg/store"
)

const (
	// scanInterval is how often the loop looks for due reminders. A
	// reminder can fire up to one interval late.
	scanInterval = 30 * time.Second

	// maxOverdue bounds how long a reminder waits for its device. Past
	// this it is marked failed instead of firing at a surprising hour.
	maxOverdue = time.Hour
)

// Gateway is the slice of the connection layer the scheduler needs.
type Gateway interface {
	Online(deviceID string) bool
	Busy(deviceID string) bool
	Notify(ctx context.Context, deviceID, text string) error
}

// Scheduler runs the reminder delivery loop.
type Scheduler struct {
	store   *store.Store
	gateway Gateway

	interval time.Duration
	now      func() time.Time
}

// New creates a Scheduler.
func New(st *store.Store, gw Gateway) *Scheduler {
	return &Scheduler{
		store:    st,
		gateway:  gw,
		interval: scanInterval,
		now:      time.Now,
	}
}

// Run scans until ctx is cancelled. The first scan happens after one
// interval, not immediately, so reconnecting devices get a moment to
// settle after a gateway restart.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.scan(ctx)
		}
	}
}

// scan delivers every due reminder it can.
func (s *Scheduler) scan(ctx context.Context) {
	now := s.now()
	due, err := s.store.DueReminders(ctx, now)
	if err != nil {
		slog.Error("reminder scan failed", "error", err)
		return
	}
	for _, r := range due {
		s.deliver(ctx, r, now)
	}
}

// deliver fires one due reminder, or reschedules it.
func (s *Scheduler) deliver(ctx context.Context, r *store.Reminder, now time.Time) {
	overdue := now.Sub(r.RemindAt)
	if overdue > maxOverdue {
		slog.Warn("reminder expired undelivered",
			"device_id", r.DeviceID, "reminder_id", r.ID,
			"overdue", overdue.Round(time.Second))
		s.finish(ctx, r, now, store.ReminderFailed)
		return
	}

	// A busy or offline device keeps the reminder pending; the next
	// scan retries until the overdue cap hits.
	if !s.gateway.Online(r.DeviceID) || s.gateway.Busy(r.DeviceID) {
		return
	}

	text := fmt.Sprintf("提醒：%s", r.Message)
	if err := s.gateway.Notify(ctx, r.DeviceID, text); err != nil {
		slog.Warn("reminder delivery failed, will retry",
			"device_id", r.DeviceID, "reminder_id", r.ID, "error", err)
		return
	}
	slog.Info("reminder delivered",
		"device_id", r.DeviceID, "reminder_id", r.ID,
		"recurrence", r.Recurrence)
	s.finish(ctx, r, now, store.ReminderDelivered)
}

// finish closes out one firing: recurring reminders re-arm to their
// next occurrence, one-shot reminders keep the terminal status.
func (s *Scheduler) finish(ctx context.Context, r *store.Reminder, now time.Time, status store.ReminderStatus) {
	if next := r.NextOccurrence(now); !next.IsZero() {
		r.RemindAt = next
		r.Status = store.ReminderPending
	} else {
		r.Status = status
	}
	if err := s.store.PutReminder(ctx, r); err != nil {
		slog.Error("reminder update failed",
			"device_id", r.DeviceID, "reminder_id", r.ID, "error", err)
	}
}
