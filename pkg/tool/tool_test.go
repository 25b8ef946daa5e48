package tool

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/session"
	"github.com/voxpod/voxpod/pkg/store"
)

func newSession() *session.Session {
	return session.New("dev-1", store.UserConfig{})
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	def := &Definition{
		Name:    "timer.set",
		Handler: func(ctx context.Context, call Call) (*Result, error) { return Silent(), nil },
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Fatal("duplicate Register should fail")
	}
}

func TestRegistryCatalog(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name:        "weather.query",
		Description: "query the weather",
		Params: []Param{
			{Name: "city", Description: "city name", Required: true},
		},
		Handler: func(ctx context.Context, call Call) (*Result, error) { return Silent(), nil },
	})
	r.MustRegister(&Definition{
		Name:        "player.pause",
		Description: "pause playback",
		Handler:     func(ctx context.Context, call Call) (*Result, error) { return Silent(), nil },
	})

	catalog := r.Catalog()
	if !strings.Contains(catalog, "weather.query") || !strings.Contains(catalog, "city") {
		t.Errorf("catalog missing tool or param:\n%s", catalog)
	}
	// Sorted: player.pause before weather.query.
	if strings.Index(catalog, "player.pause") > strings.Index(catalog, "weather.query") {
		t.Error("catalog not sorted")
	}
}

func TestRouterRules(t *testing.T) {
	r := NewRouter()
	tests := []struct {
		text string
		tool string
		args Args
	}{
		{"play hotel california", "music.play", Args{"query": "hotel california"}},
		{"播放 周杰伦", "music.play", Args{"query": "周杰伦"}},
		{"放音乐", "music.play", Args{"query": "热门歌曲"}},
		{"pause", "player.pause", Args{}},
		{"继续播放", "player.resume", Args{}},
		{"stop", "player.stop", Args{}},
		{"倒计时5分钟", "timer.set", Args{"seconds": "300", "label": "5分钟倒计时"}},
		{"倒计时30秒", "timer.set", Args{"seconds": "30", "label": "30秒倒计时"}},
		{"10分钟后提醒我关火", "timer.set", Args{"seconds": "600", "label": "关火"}},
		{"今天天气怎么样", "weather.query", Args{"query": "今天天气怎么样"}},
		{"what's the weather like", "weather.query", Args{"query": "what's the weather"}},
		{"start meeting standup", "meeting.start", Args{"title": "standup"}},
		{"结束会议", "meeting.end", Args{}},
		{"transcribe", "meeting.transcribe", Args{}},
		{"search golang generics", "web.search", Args{"query": "golang generics"}},
	}
	for _, tt := range tests {
		got := r.Route(tt.text)
		if got == nil {
			t.Errorf("Route(%q) = nil, want %s", tt.text, tt.tool)
			continue
		}
		if got.Tool != tt.tool {
			t.Errorf("Route(%q).Tool = %s, want %s", tt.text, got.Tool, tt.tool)
		}
		for k, want := range tt.args {
			if got.Args[k] != want {
				t.Errorf("Route(%q).Args[%s] = %q, want %q", tt.text, k, got.Args[k], want)
			}
		}
	}
}

func TestRouterNoMatch(t *testing.T) {
	r := NewRouter()
	for _, text := range []string{
		"tell me a story",
		"你叫什么名字",
		"",
	} {
		if got := r.Route(text); got != nil {
			t.Errorf("Route(%q) = %+v, want nil", text, got)
		}
	}
}

func TestFormatHint(t *testing.T) {
	got := FormatHint("正在为你播放{query}", Args{"query": "晴天"})
	if got != "正在为你播放晴天" {
		t.Errorf("FormatHint = %q", got)
	}
	// Unknown placeholders survive.
	got = FormatHint("{label}已开始", Args{"seconds": "60"})
	if got != "{label}已开始" {
		t.Errorf("FormatHint = %q", got)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	e := NewExecutor(NewRegistry())
	result := e.Execute(context.Background(), "no.such", Args{}, newSession(), nil)
	if result.Kind != KindError {
		t.Errorf("result kind = %s, want error", result.Kind)
	}
}

func TestExecuteAskUserFirstMissingParam(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "reminder.set",
		Params: []Param{
			{Name: "message", Description: "提醒内容", Required: true},
			{Name: "time", Description: "提醒时间", Required: true},
		},
		Handler: func(ctx context.Context, call Call) (*Result, error) {
			return Speak("ok"), nil
		},
	})
	e := NewExecutor(r)

	result := e.Execute(context.Background(), "reminder.set", Args{}, newSession(), nil)
	if result.Kind != KindAskUser {
		t.Fatalf("result kind = %s, want ask_user", result.Kind)
	}
	if result.MissingParam != "message" {
		t.Errorf("missing param = %q, want first declared (message)", result.MissingParam)
	}
	if result.Tool != "reminder.set" {
		t.Errorf("tool = %q", result.Tool)
	}

	// Resume with the first param filled asks for the second.
	result = e.Execute(context.Background(), "reminder.set", Args{"message": "开会"}, newSession(), nil)
	if result.Kind != KindAskUser || result.MissingParam != "time" {
		t.Fatalf("second call = %s/%s, want ask_user/time", result.Kind, result.MissingParam)
	}
	if result.PartialArgs["message"] != "开会" {
		t.Error("partial args lost on ask_user")
	}

	// Both params present: tool runs.
	result = e.Execute(context.Background(), "reminder.set", Args{"message": "开会", "time": "明天"}, newSession(), nil)
	if result.Kind != KindSpeak {
		t.Errorf("full call kind = %s, want speak", result.Kind)
	}
}

func TestExecuteAppliesDefaults(t *testing.T) {
	r := NewRegistry()
	var seen Args
	r.MustRegister(&Definition{
		Name: "volume.set",
		Params: []Param{
			{Name: "level", Description: "音量", Default: "50"},
		},
		Handler: func(ctx context.Context, call Call) (*Result, error) {
			seen = call.Args
			return Silent(), nil
		},
	})
	e := NewExecutor(r)
	e.Execute(context.Background(), "volume.set", Args{}, newSession(), nil)
	if seen["level"] != "50" {
		t.Errorf("default not applied: %v", seen)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "web.search",
		Handler: func(ctx context.Context, call Call) (*Result, error) {
			return nil, errors.New("upstream 500")
		},
	})
	e := NewExecutor(r)
	result := e.Execute(context.Background(), "web.search", Args{}, newSession(), nil)
	if result.Kind != KindError {
		t.Errorf("result kind = %s, want error", result.Kind)
	}
}

func TestExecuteHandlerPanic(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "music.play",
		Handler: func(ctx context.Context, call Call) (*Result, error) {
			var m map[string]string
			m["boom"] = "x"
			return nil, nil
		},
	})
	e := NewExecutor(r)
	result := e.Execute(context.Background(), "music.play", Args{}, newSession(), nil)
	if result.Kind != KindError {
		t.Errorf("result kind = %s, want error", result.Kind)
	}
}

func TestExecuteLongRunningKeepalive(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name:        "meeting.transcribe",
		LongRunning: true,
		Handler: func(ctx context.Context, call Call) (*Result, error) {
			time.Sleep(250 * time.Millisecond)
			return Speak("done"), nil
		},
	})
	e := NewExecutor(r)
	e.keepalive = 50 * time.Millisecond

	var pushes atomic.Int32
	pusher := FramePusherFunc(func(ctx context.Context, f audio.Frame) error {
		pushes.Add(1)
		return nil
	})

	result := e.Execute(context.Background(), "meeting.transcribe", Args{}, newSession(), pusher)
	if result.Kind != KindSpeak {
		t.Fatalf("result kind = %s, want speak", result.Kind)
	}
	if pushes.Load() < 2 {
		t.Errorf("got %d keepalive pushes, want >= 2", pushes.Load())
	}
}

func TestExecuteLongRunningCancelled(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name:        "music.play",
		LongRunning: true,
		Handler: func(ctx context.Context, call Call) (*Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	e := NewExecutor(r)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	pusher := FramePusherFunc(func(ctx context.Context, f audio.Frame) error { return nil })
	result := e.Execute(ctx, "music.play", Args{}, newSession(), pusher)
	if result.Kind != KindSilent {
		t.Errorf("result kind = %s, want silent", result.Kind)
	}
}
