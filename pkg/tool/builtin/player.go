package builtin

import (
	"context"

	"github.com/voxpod/voxpod/pkg/tool"
)

// Player control mutates the music sub-state directly; the consumer
// loop observes the pause gate and abort flag.
func registerPlayer(reg *tool.Registry, deps *Deps) error {
	defs := []*tool.Definition{
		{
			Name:        "player.pause",
			Description: "Pause currently playing music",
			Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
				m := call.Session.Music()
				if !m.Playing || m.Paused {
					return tool.Speak("没有正在播放的音乐"), nil
				}
				call.Session.PauseMusic()
				return tool.Speak("已暂停"), nil
			},
		},
		{
			Name:        "player.resume",
			Description: "Resume paused music",
			Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
				if !call.Session.ResumeMusic() {
					return tool.Speak("没有暂停的音乐"), nil
				}
				return tool.Speak("继续播放"), nil
			},
		},
		{
			Name:        "player.stop",
			Description: "Stop music playback",
			Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
				if !call.Session.Music().Playing {
					return tool.Speak("没有正在播放的音乐"), nil
				}
				call.Session.StopMusic()
				return tool.Speak("已停止播放"), nil
			},
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
