package builtin

import (
	"context"
	"log/slog"

	"github.com/voxpod/voxpod/pkg/tool"
)

func registerConversation(reg *tool.Registry, deps *Deps) error {
	return reg.Register(&tool.Definition{
		Name:        "conversation.reset",
		Description: "Clear conversation history and start fresh",
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			call.Session.ClearHistory()
			if err := deps.Store.ClearConversation(ctx, call.Session.DeviceID); err != nil {
				slog.Error("clear stored conversation failed",
					"device_id", call.Session.DeviceID, "error", err)
			}
			return tool.Speak("好的，对话已清空，让我们重新开始吧"), nil
		},
	})
}
