// Package intent classifies transcripts into tool calls. A planner
// backed by an LLM returns either a chat response or a tool invocation
// with extracted arguments, a spoken status hint, and an emotion tag
// for the device display.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/voxpod/voxpod/pkg/store"
	"github.com/voxpod/voxpod/pkg/tool"
)

// ToolChat marks an intent answered directly instead of via a tool.
const ToolChat = "chat"

// maxPlanTokens bounds the planner completion; intent JSON is small
// and an unbounded reply would be spoken in full.
const maxPlanTokens = 512

// Intent is the planner's verdict for one utterance.
type Intent struct {
	Tool    string
	Args    tool.Args
	Hint    string
	Emotion string

	// Response is the chat answer when Tool is ToolChat.
	Response string
}

// Request carries everything the planner needs for one utterance.
type Request struct {
	Text    string
	History []store.Message
	Config  store.UserConfig

	// Catalog is the rendered tool list from the registry.
	Catalog string
}

// Planner turns an utterance into an Intent.
type Planner interface {
	Plan(ctx context.Context, req Request) (*Intent, error)
}

const promptTemplate = `You are the voice assistant of a wearable device. Analyze the user's request and respond in JSON.
Today's date/time: %s

Available tools:
%s

Response format — always valid JSON, pick one:
1. Direct answer (questions, chat, info you know):
   {"tool": "chat", "args": {"response": "your answer"}, "emotion": "happy"}

2. Use a tool:
   {"tool": "<tool_name>", "args": {...}, "reply_hint": "brief status phrase", "emotion": "happy"}

Emotion field (REQUIRED): controls the device's eye expression. Choose one:
  neutral, happy, sad, angry, surprised, thinking, confused, love, shy, wink

Music rules:
- Play/listen to music → tool "music.play"
- Pause → "player.pause", Stop → "player.stop", Resume → "player.resume"

Reminder rules:
- Use "reminder.set" with datetime_iso, message, and optional recurrence
- Parse date/time relative to today. If no time specified, default to 09:00.
- For recurring reminders set recurrence to "daily" (每天), "weekly" (每周) or "weekdays" (工作日)

Timer rules:
- Countdown → "timer.set" with seconds (as string) and optional label
- Convert minutes to seconds (e.g. 5分钟 → seconds="300")

Search rules:
- Use "web.search" for questions needing real-time or factual data you don't know

Examples:
- "播放周杰伦的歌" → {"tool": "music.play", "args": {"query": "周杰伦 热门歌曲"}, "reply_hint": "正在播放周杰伦的歌", "emotion": "happy"}
- "提醒我明天下午3点开会" → {"tool": "reminder.set", "args": {"datetime_iso": "%s", "message": "开会", "response": "好的，已设置明天下午3点提醒你开会"}, "reply_hint": "设置提醒", "emotion": "happy"}
- "倒计时5分钟" → {"tool": "timer.set", "args": {"seconds": "300", "label": "5分钟倒计时"}, "reply_hint": "5分钟倒计时已开始", "emotion": "happy"}
- "你好" → {"tool": "chat", "args": {"response": "你好！有什么可以帮你的吗？"}, "emotion": "happy"}

IMPORTANT: Always respond with valid JSON only. No markdown, no code blocks. Respond in the same language as the user.`

// buildPrompt renders the planner system prompt with the current time
// and the registry catalog.
func buildPrompt(catalog string, now time.Time) string {
	example := now.AddDate(0, 0, 1).Format("2006-01-02") + "T15:00:00"
	return fmt.Sprintf(promptTemplate, now.Format("2006-01-02 15:04:05 (Monday)"), catalog, example)
}

// rawIntent mirrors the planner's JSON output.
type rawIntent struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	ReplyHint string         `json:"reply_hint"`
	Emotion   string         `json:"emotion"`
}

// parseIntent decodes the planner's reply. Broken JSON is repaired
// first; if the reply still won't parse, it is treated as a plain chat
// answer so the user always hears something.
func parseIntent(raw string) *Intent {
	raw = strings.TrimSpace(raw)

	var ri rawIntent
	if err := json.Unmarshal([]byte(raw), &ri); err != nil {
		repaired, repErr := jsonrepair.JSONRepair(raw)
		if repErr != nil || json.Unmarshal([]byte(repaired), &ri) != nil {
			slog.Warn("intent parse failed, degrading to chat", "raw", truncate(raw, 200))
			return &Intent{Tool: ToolChat, Response: raw}
		}
	}
	if ri.Tool == "" {
		return &Intent{Tool: ToolChat, Response: raw}
	}

	args := make(tool.Args, len(ri.Args))
	for k, v := range ri.Args {
		if s, ok := v.(string); ok {
			args[k] = s
		} else {
			args[k] = fmt.Sprintf("%v", v)
		}
	}

	intent := &Intent{
		Tool:    ri.Tool,
		Args:    args,
		Hint:    ri.ReplyHint,
		Emotion: ri.Emotion,
	}
	if intent.Tool == ToolChat {
		intent.Response = args["response"]
	}
	return intent
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
