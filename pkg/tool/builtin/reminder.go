package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxpod/voxpod/pkg/store"
	"github.com/voxpod/voxpod/pkg/tool"
)

func registerReminder(reg *tool.Registry, deps *Deps) error {
	return reg.Register(&tool.Definition{
		Name:        "reminder.set",
		Description: "Set a reminder for a specific date/time, optionally recurring",
		Params: []tool.Param{
			{Name: "datetime_iso", Description: "ISO datetime e.g. 2026-02-15T09:00:00", Required: true},
			{Name: "message", Description: "reminder text", Required: true},
			{Name: "recurrence", Description: "empty for one-shot, or daily, weekly, weekdays"},
			{Name: "response", Description: "confirmation to speak"},
		},
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			remindAt, err := parseLocalTime(call.Args["datetime_iso"])
			if err != nil {
				return tool.Speak("抱歉，我没有理解那个时间，请再说一次。"), nil
			}
			if remindAt.Before(time.Now()) {
				return tool.Speak("那个时间已经过了，请设置一个未来的提醒。"), nil
			}

			recurrence := call.Args["recurrence"]
			switch recurrence {
			case store.RecurNone, store.RecurDaily, store.RecurWeekly, store.RecurWeekdays:
			default:
				recurrence = store.RecurNone
			}

			message := call.Args["message"]
			r, err := deps.Store.AddReminder(ctx, call.Session.DeviceID, message, remindAt, recurrence)
			if err != nil {
				return nil, fmt.Errorf("save reminder: %w", err)
			}
			slog.Info("reminder saved",
				"device_id", call.Session.DeviceID,
				"reminder_id", r.ID,
				"remind_at", remindAt,
				"recurrence", recurrence)

			if response := call.Args["response"]; response != "" {
				return tool.Speak(response), nil
			}
			return tool.Speak(fmt.Sprintf("好的，已设置提醒：%s", message)), nil
		},
	})
}

// parseLocalTime accepts RFC 3339 timestamps with or without a zone,
// treating zoneless ones as local time.
func parseLocalTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
}
