package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/voxpod/voxpod/pkg/tool"
	"github.com/voxpod/voxpod/pkg/wire"
)

func registerVolume(reg *tool.Registry, deps *Deps) error {
	return reg.Register(&tool.Definition{
		Name:        "volume.set",
		Description: "Set device volume (0-100)",
		Params: []tool.Param{
			{Name: "level", Description: "volume level (0=mute, 100=max)", Required: true},
		},
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			level, err := strconv.Atoi(call.Args["level"])
			if err != nil {
				return tool.Speak("抱歉，我没有理解那个音量。"), nil
			}
			level = max(0, min(100, level))

			if err := deps.Pusher.Send(ctx, call.Session.DeviceID, wire.NewVolume(level)); err != nil {
				return tool.Errorf("设备未连接"), nil
			}

			switch {
			case level == 0:
				return tool.Speak("已静音"), nil
			case level <= 30:
				return tool.Speak(fmt.Sprintf("音量设为%d%%，较小", level)), nil
			case level <= 70:
				return tool.Speak(fmt.Sprintf("音量设为%d%%", level)), nil
			default:
				return tool.Speak(fmt.Sprintf("音量设为%d%%，较大", level)), nil
			}
		},
	})
}
