package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/session"
)

// keepaliveInterval is how often a silence frame is pushed to the
// device while a long-running handler is still working. The wearable
// drops the link after a few seconds without downlink traffic.
const keepaliveInterval = 2 * time.Second

// FramePusher delivers a single frame to the device out of band. The
// gateway connection implements it.
type FramePusher interface {
	PushFrame(ctx context.Context, f audio.Frame) error
}

// FramePusherFunc adapts a function to FramePusher.
type FramePusherFunc func(ctx context.Context, f audio.Frame) error

// PushFrame calls fn.
func (fn FramePusherFunc) PushFrame(ctx context.Context, f audio.Frame) error {
	return fn(ctx, f)
}

// Executor validates and runs tool calls. All failure paths produce a
// Result; Execute never returns a Go error to the orchestrator.
type Executor struct {
	registry  *Registry
	keepalive time.Duration
}

// NewExecutor creates an Executor over a registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry, keepalive: keepaliveInterval}
}

// Execute runs the named tool. Unknown tools and handler failures come
// back as error results. A required parameter missing from args yields
// an ask_user result for the first such parameter, in declaration
// order, carrying the partial args for the follow-up turn.
//
// Long-running tools run in their own goroutine while Execute pushes a
// silence frame every 2s through pusher; a nil pusher disables the
// keepalive. Cancellation via ctx or the session abort flag yields a
// silent result.
func (e *Executor) Execute(ctx context.Context, name string, args Args, sess *session.Session, pusher FramePusher) *Result {
	def := e.registry.Get(name)
	if def == nil {
		slog.Warn("unknown tool", "tool", name)
		return Errorf(fmt.Sprintf("未知工具: %s", name))
	}

	if args == nil {
		args = Args{}
	}
	for _, p := range def.Params {
		if _, ok := args[p.Name]; ok {
			continue
		}
		if p.Required {
			desc := p.Description
			if desc == "" {
				desc = p.Name
			}
			return AskUser(fmt.Sprintf("请问%s是什么？", desc), name, p.Name, args.Clone())
		}
		if p.Default != "" {
			args[p.Name] = p.Default
		}
	}

	call := Call{Session: sess, Args: args}
	slog.Info("executing tool", "tool", name, "args", fmt.Sprint(args))
	t0 := time.Now()

	var result *Result
	if def.LongRunning && pusher != nil {
		result = e.runWithKeepalive(ctx, def, call, sess, pusher)
	} else {
		result = runHandler(ctx, def, call)
	}

	slog.Info("tool finished",
		"tool", name,
		"elapsed", time.Since(t0).Round(100*time.Millisecond),
		"result", result.Kind)
	return result
}

// runHandler invokes the handler and converts errors and panics to
// error results.
func runHandler(ctx context.Context, def *Definition, call Call) (out *Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked", "tool", def.Name, "panic", r)
			out = Errorf("执行失败: 内部错误")
		}
	}()
	result, err := def.Handler(ctx, call)
	if err != nil {
		slog.Error("tool failed", "tool", def.Name, "error", err)
		return Errorf(fmt.Sprintf("执行失败: %v", err))
	}
	if result == nil {
		return Silent()
	}
	return result
}

// runWithKeepalive runs the handler in a goroutine and pushes silence
// frames until it completes or the call is cancelled.
func (e *Executor) runWithKeepalive(ctx context.Context, def *Definition, call Call, sess *session.Session, pusher FramePusher) *Result {
	done := make(chan *Result, 1)
	go func() {
		done <- runHandler(ctx, def, call)
	}()

	ticker := time.NewTicker(e.keepalive)
	defer ticker.Stop()
	for {
		select {
		case result := <-done:
			return result
		case <-ctx.Done():
			slog.Info("long-running tool cancelled", "tool", def.Name)
			return Silent()
		case <-ticker.C:
			if sess != nil && sess.Aborted() {
				slog.Info("long-running tool aborted", "tool", def.Name)
				return Silent()
			}
			if err := pusher.PushFrame(ctx, audio.Silence()); err != nil {
				slog.Warn("keepalive push failed", "tool", def.Name, "error", err)
			}
		}
	}
}
