package builtin

import (
	"context"
	"fmt"

	"github.com/voxpod/voxpod/pkg/tool"
)

func registerMusic(reg *tool.Registry, deps *Deps) error {
	return reg.Register(&tool.Definition{
		Name:        "music.play",
		Description: "Search YouTube and play a song",
		Params: []tool.Param{
			{Name: "query", Description: "search query or URL", Required: true},
		},
		LongRunning: true,
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			query := call.Args["query"]
			track, err := deps.Music.Search(ctx, query)
			if err != nil {
				return tool.Errorf(fmt.Sprintf("找不到音乐: %v", err)), nil
			}

			// The stream outlives this tool call; the consumer loop
			// owns its shutdown via Close.
			src, err := deps.Music.Stream(context.WithoutCancel(ctx), track)
			if err != nil {
				return tool.Errorf(fmt.Sprintf("播放失败: %v", err)), nil
			}
			return tool.StreamAudio(track.Title, src), nil
		},
	})
}
