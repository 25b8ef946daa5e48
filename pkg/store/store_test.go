package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxpod/voxpod/pkg/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(kv.NewMemory())
}

func TestDeviceAuth(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	dev, err := s.RegisterDevice(ctx, "dev-1", "desk", "secret")
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if dev.TokenHash == nil || dev.TokenSalt == nil {
		t.Fatal("token hash/salt not populated")
	}

	got, err := s.Authenticate(ctx, "dev-1", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Name != "desk" {
		t.Errorf("Name = %q", got.Name)
	}

	if _, err := s.Authenticate(ctx, "dev-1", "wrong"); !errors.Is(err, ErrBadCredential) {
		t.Errorf("wrong token: err = %v, want ErrBadCredential", err)
	}
	if _, err := s.Authenticate(ctx, "dev-2", "secret"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown device: err = %v, want ErrNotFound", err)
	}
}

func TestRegisterDeviceKeepsConfig(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	dev, _ := s.RegisterDevice(ctx, "dev-1", "desk", "old")
	dev.Config.TTSVoice = "alloy"
	if err := s.PutDevice(ctx, dev); err != nil {
		t.Fatalf("PutDevice: %v", err)
	}

	// Re-register with a new token. Config and created time survive.
	dev2, err := s.RegisterDevice(ctx, "dev-1", "", "new")
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if dev2.Config.TTSVoice != "alloy" {
		t.Errorf("Config.TTSVoice = %q, want alloy", dev2.Config.TTSVoice)
	}
	if dev2.Name != "desk" {
		t.Errorf("Name = %q, want desk", dev2.Name)
	}
	if _, err := s.Authenticate(ctx, "dev-1", "old"); err == nil {
		t.Error("old token still accepted after re-register")
	}
	if _, err := s.Authenticate(ctx, "dev-1", "new"); err != nil {
		t.Errorf("new token rejected: %v", err)
	}
}

func TestUserConfigGet(t *testing.T) {
	c := UserConfig{TTSVoice: "nova"}
	if got := c.Get(c.TTSVoice, "alloy"); got != "nova" {
		t.Errorf("Get = %q, want nova", got)
	}
	if got := c.Get(c.ChatModel, "gpt-4o-mini"); got != "gpt-4o-mini" {
		t.Errorf("Get fallback = %q", got)
	}
}

func TestReminders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	due, _ := s.AddReminder(ctx, "dev-1", "take medicine", now.Add(-time.Minute), RecurNone)
	_, _ = s.AddReminder(ctx, "dev-1", "future", now.Add(time.Hour), RecurNone)
	delivered, _ := s.AddReminder(ctx, "dev-2", "done already", now.Add(-time.Minute), RecurNone)
	delivered.Status = ReminderDelivered
	if err := s.PutReminder(ctx, delivered); err != nil {
		t.Fatalf("PutReminder: %v", err)
	}

	got, err := s.DueReminders(ctx, now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("DueReminders = %v, want just %s", got, due.ID)
	}

	all, err := s.ListReminders(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListReminders len = %d, want 2", len(all))
	}
}

func TestReminderNextOccurrence(t *testing.T) {
	// A Friday.
	friday := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		recurrence string
		want       time.Time
	}{
		{"one-shot", RecurNone, time.Time{}},
		{"daily", RecurDaily, friday.AddDate(0, 0, 1)},
		{"weekly", RecurWeekly, friday.AddDate(0, 0, 7)},
		{"weekdays skips weekend", RecurWeekdays, friday.AddDate(0, 0, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reminder{RemindAt: friday, Recurrence: tt.recurrence}
			got := r.NextOccurrence(friday)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReminderNextOccurrenceCatchesUp(t *testing.T) {
	r := &Reminder{
		RemindAt:   time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Recurrence: RecurDaily,
	}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	got := r.NextOccurrence(now)
	want := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextOccurrence = %v, want %v", got, want)
	}
}

func TestMeetings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.StartMeeting(ctx, "dev-1", "standup")
	if err != nil {
		t.Fatalf("StartMeeting: %v", err)
	}
	if m.Status != MeetingRecording {
		t.Errorf("Status = %q", m.Status)
	}

	m.Status = MeetingEnded
	m.DurationS = 125
	m.AudioPath = "meetings/dev-1/" + m.ID + ".pcm"
	if err := s.PutMeeting(ctx, m); err != nil {
		t.Fatalf("PutMeeting: %v", err)
	}

	got, err := s.GetMeeting(ctx, "dev-1", m.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if got.DurationS != 125 || got.Status != MeetingEnded {
		t.Errorf("got %+v", got)
	}

	list, _ := s.ListMeetings(ctx, "dev-1")
	if len(list) != 1 {
		t.Errorf("ListMeetings len = %d", len(list))
	}
}

func TestConversationBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var msgs []Message
	for i := 0; i < MaxHistory+10; i++ {
		msgs = append(msgs, Message{Role: "user", Content: string(rune('a' + i%26))})
	}
	if err := s.PutConversation(ctx, "dev-1", msgs); err != nil {
		t.Fatalf("PutConversation: %v", err)
	}
	got, err := s.GetConversation(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(got) != MaxHistory {
		t.Fatalf("history len = %d, want %d", len(got), MaxHistory)
	}
	// Oldest dropped, newest kept.
	if got[len(got)-1].Content != msgs[len(msgs)-1].Content {
		t.Error("newest message not preserved")
	}
}

func TestConversationMissingIsEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetConversation(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
