package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxpod/voxpod/pkg/kv"
)

// Reminder delivery status.
type ReminderStatus int

const (
	ReminderPending ReminderStatus = iota
	ReminderDelivered
	ReminderFailed
)

// String returns the status name.
func (s ReminderStatus) String() string {
	switch s {
	case ReminderPending:
		return "pending"
	case ReminderDelivered:
		return "delivered"
	case ReminderFailed:
		return "failed"
	}
	return fmt.Sprintf("ReminderStatus(%d)", int(s))
}

// Recurrence values for Reminder.Recurrence.
const (
	RecurNone     = ""
	RecurDaily    = "daily"
	RecurWeekly   = "weekly"
	RecurWeekdays = "weekdays"
)

// Reminder is a scheduled spoken notification.
type Reminder struct {
	ID         string         `msgpack:"id"`
	DeviceID   string         `msgpack:"device_id"`
	Message    string         `msgpack:"message"`
	RemindAt   time.Time      `msgpack:"remind_at"`
	Recurrence string         `msgpack:"recurrence"`
	Status     ReminderStatus `msgpack:"status"`
	CreatedAt  time.Time      `msgpack:"created_at"`
}

// NextOccurrence returns the re-armed due time for a recurring
// reminder, or the zero time for one-shot reminders. The result is
// always after now.
func (r *Reminder) NextOccurrence(now time.Time) time.Time {
	var step func(time.Time) time.Time
	switch r.Recurrence {
	case RecurDaily:
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case RecurWeekly:
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case RecurWeekdays:
		step = func(t time.Time) time.Time {
			t = t.AddDate(0, 0, 1)
			for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
				t = t.AddDate(0, 0, 1)
			}
			return t
		}
	default:
		return time.Time{}
	}
	next := step(r.RemindAt)
	for !next.After(now) {
		next = step(next)
	}
	return next
}

// AddReminder stores a new pending reminder and returns it.
func (s *Store) AddReminder(ctx context.Context, deviceID, message string, remindAt time.Time, recurrence string) (*Reminder, error) {
	r := &Reminder{
		ID:         uuid.NewString()[:8],
		DeviceID:   deviceID,
		Message:    message,
		RemindAt:   remindAt,
		Recurrence: recurrence,
		Status:     ReminderPending,
		CreatedAt:  time.Now(),
	}
	if err := s.set(ctx, kv.Key("reminder", deviceID, r.ID), r); err != nil {
		return nil, err
	}
	return r, nil
}

// PutReminder stores a reminder as-is.
func (s *Store) PutReminder(ctx context.Context, r *Reminder) error {
	return s.set(ctx, kv.Key("reminder", r.DeviceID, r.ID), r)
}

// DeleteReminder removes a reminder.
func (s *Store) DeleteReminder(ctx context.Context, deviceID, id string) error {
	return s.kv.Delete(ctx, kv.Key("reminder", deviceID, id))
}

// ListReminders returns all reminders for a device.
func (s *Store) ListReminders(ctx context.Context, deviceID string) ([]*Reminder, error) {
	var out []*Reminder
	for e, err := range s.kv.List(ctx, kv.Key("reminder", deviceID)+"/") {
		if err != nil {
			return nil, err
		}
		var r Reminder
		if err := decodeEntry(e.Value, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, nil
}

// DueReminders returns all pending reminders across devices whose due
// time is at or before now.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]*Reminder, error) {
	var out []*Reminder
	for e, err := range s.kv.List(ctx, "reminder/") {
		if err != nil {
			return nil, err
		}
		var r Reminder
		if err := decodeEntry(e.Value, &r); err != nil {
			return nil, err
		}
		if r.Status == ReminderPending && !r.RemindAt.After(now) {
			out = append(out, &r)
		}
	}
	return out, nil
}
