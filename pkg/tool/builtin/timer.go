package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/voxpod/voxpod/pkg/tool"
)

// maxTimerSeconds caps countdowns at two hours.
const maxTimerSeconds = 7200

// timerSet tracks running countdowns per device so they can be
// cancelled as a group.
type timerSet struct {
	mu     sync.Mutex
	active map[string][]*deviceTimer
}

type deviceTimer struct {
	label  string
	cancel context.CancelFunc
	done   chan struct{}
}

func newTimerSet() *timerSet {
	return &timerSet{active: make(map[string][]*deviceTimer)}
}

func (ts *timerSet) add(deviceID string, t *deviceTimer) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	// Sweep finished timers while we are here.
	live := ts.active[deviceID][:0]
	for _, old := range ts.active[deviceID] {
		select {
		case <-old.done:
		default:
			live = append(live, old)
		}
	}
	ts.active[deviceID] = append(live, t)
}

// cancelAll stops every running timer for the device and returns how
// many were cancelled.
func (ts *timerSet) cancelAll(deviceID string) int {
	ts.mu.Lock()
	timers := ts.active[deviceID]
	ts.active[deviceID] = nil
	ts.mu.Unlock()

	n := 0
	for _, t := range timers {
		select {
		case <-t.done:
		default:
			t.cancel()
			n++
		}
	}
	return n
}

func registerTimer(reg *tool.Registry, deps *Deps) error {
	timers := newTimerSet()

	setDef := &tool.Definition{
		Name:        "timer.set",
		Description: "Set a countdown timer (e.g. 5 minutes). Notifies via TTS when done.",
		Params: []tool.Param{
			{Name: "seconds", Description: "countdown duration in seconds", Required: true},
			{Name: "label", Description: "timer label (e.g. '5分钟倒计时')"},
		},
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			secs, err := strconv.Atoi(call.Args["seconds"])
			if err != nil {
				return tool.Speak("抱歉，我没有理解那个时间。请说比如倒计时5分钟。"), nil
			}
			if secs <= 0 {
				return tool.Speak("时间必须大于0。"), nil
			}
			if secs > maxTimerSeconds {
				return tool.Speak("最多支持2小时倒计时。"), nil
			}

			label := call.Args["label"]
			if label == "" {
				label = fmt.Sprintf("%d秒倒计时", secs)
			}
			deviceID := call.Session.DeviceID

			timerCtx, cancel := context.WithCancel(context.Background())
			t := &deviceTimer{label: label, cancel: cancel, done: make(chan struct{})}
			timers.add(deviceID, t)

			go func() {
				defer close(t.done)
				defer cancel()
				select {
				case <-timerCtx.Done():
					slog.Info("timer cancelled", "device_id", deviceID, "label", label)
					return
				case <-time.After(time.Duration(secs) * time.Second):
				}
				slog.Info("timer fired", "device_id", deviceID, "label", label)
				notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer notifyCancel()
				text := fmt.Sprintf("时间到！%s已结束。", label)
				if err := deps.Pusher.Notify(notifyCtx, deviceID, text); err != nil {
					slog.Warn("timer notification failed", "device_id", deviceID, "error", err)
				}
			}()

			return tool.Speak(fmt.Sprintf("好的，%s倒计时已开始。", formatSpan(secs))), nil
		},
	}

	cancelDef := &tool.Definition{
		Name:        "timer.cancel",
		Description: "Cancel all active timers for the current device",
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			n := timers.cancelAll(call.Session.DeviceID)
			if n == 0 {
				return tool.Speak("当前没有正在运行的倒计时。"), nil
			}
			return tool.Speak(fmt.Sprintf("已取消%d个倒计时。", n)), nil
		},
	}

	if err := reg.Register(setDef); err != nil {
		return err
	}
	return reg.Register(cancelDef)
}

// formatSpan renders a duration in natural Chinese, e.g. "5分钟30秒".
func formatSpan(secs int) string {
	if secs < 60 {
		return fmt.Sprintf("%d秒", secs)
	}
	mins, rem := secs/60, secs%60
	if rem == 0 {
		return fmt.Sprintf("%d分钟", mins)
	}
	return fmt.Sprintf("%d分钟%d秒", mins, rem)
}
