package tool

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// RouteMatch is a successful rule match: the tool to run, extracted
// arguments, and an optional canned reply spoken before execution.
type RouteMatch struct {
	Tool string
	Args Args
	Hint string
}

// rule is one router entry. Rules are tried in order; the first whose
// pattern matches and whose extractor yields a non-empty query wins.
type rule struct {
	pattern *regexp.Regexp
	tool    string
	extract func(m []string) Args
	hint    string
}

// Router maps common commands to tool calls with anchored regex rules,
// bypassing the planner for latency-critical paths like player control.
type Router struct {
	rules []rule
}

// NewRouter builds the default rule set. Chinese and English commands
// are matched case-insensitively against the trimmed transcript.
func NewRouter() *Router {
	specs := []struct {
		pattern string
		tool    string
		extract func(m []string) Args
		hint    string
	}{
		// Music with an explicit query.
		{
			`^(?:帮我|请|能不能|可以)?\s*(?:播放|放|来一首|我想听|放首|听一?(?:首|个)?)\s+(.+)`,
			"music.play",
			func(m []string) Args { return Args{"query": strings.TrimSpace(m[1])} },
			"正在为你播放{query}",
		},
		{
			`^(?:play|put on|listen to)\s+(.+)`,
			"music.play",
			func(m []string) Args { return Args{"query": strings.TrimSpace(m[1])} },
			"Playing {query}",
		},
		// Generic music, no query.
		{
			`^(?:帮我|请)?\s*(?:放首歌|放个歌|放音乐|播放音乐|来首歌|听歌|播放|play(?:\s+some)?\s+music)$`,
			"music.play",
			func(m []string) Args { return Args{"query": "热门歌曲"} },
			"正在播放音乐",
		},
		// Player controls.
		{
			`^(?:暂停|暂停播放|pause)$`,
			"player.pause",
			func(m []string) Args { return Args{} },
			"已暂停",
		},
		{
			`^(?:继续|继续播放|恢复播放|resume|continue)$`,
			"player.resume",
			func(m []string) Args { return Args{} },
			"继续播放",
		},
		{
			`^(?:停止|停止播放|停|别放了|别播了|stop)$`,
			"player.stop",
			func(m []string) Args { return Args{} },
			"已停止",
		},
		// Timers.
		{
			`^(?:倒计时|计时)\s*(\d+)\s*(?:分钟|分)$`,
			"timer.set",
			func(m []string) Args {
				n, _ := strconv.Atoi(m[1])
				return Args{"seconds": strconv.Itoa(n * 60), "label": m[1] + "分钟倒计时"}
			},
			"{label}已开始",
		},
		{
			`^(?:倒计时|计时)\s*(\d+)\s*秒$`,
			"timer.set",
			func(m []string) Args {
				return Args{"seconds": m[1], "label": m[1] + "秒倒计时"}
			},
			"{label}已开始",
		},
		{
			`^(\d+)\s*(?:分钟|分)(?:后|之后)?(?:提醒我|叫我|告诉我)(.*)$`,
			"timer.set",
			func(m []string) Args {
				n, _ := strconv.Atoi(m[1])
				label := strings.TrimSpace(m[2])
				if label == "" {
					label = m[1] + "分钟倒计时"
				}
				return Args{"seconds": strconv.Itoa(n * 60), "label": label}
			},
			"好的，{label}",
		},
		// Weather.
		{
			`^(?:今天|明天|后天|.{2,4}的)?天气(?:怎么样|如何|预报)?$`,
			"weather.query",
			func(m []string) Args { return Args{"query": m[0]} },
			"正在查询天气",
		},
		{
			`^(?:what'?s the |how'?s the )?weather`,
			"weather.query",
			func(m []string) Args { return Args{"query": m[0]} },
			"Checking weather",
		},
		// Meeting.
		{
			`^(?:开始(?:会议|录音|记录)|start\s+(?:meeting|recording))(?:\s+(.+))?$`,
			"meeting.start",
			func(m []string) Args { return Args{"title": strings.TrimSpace(m[1])} },
			"开始录音",
		},
		{
			`^(?:结束(?:会议|录音|记录)|end\s+(?:meeting|recording)|stop\s+recording)$`,
			"meeting.end",
			func(m []string) Args { return Args{} },
			"会议已结束",
		},
		{
			`^(?:转录|转写|会议(?:记录|内容)|transcribe)$`,
			"meeting.transcribe",
			func(m []string) Args { return Args{} },
			"正在转录",
		},
		// Web search.
		{
			`^(?:搜索|搜一下|查一下|帮我查|百度|谷歌|search)\s+(.+)`,
			"web.search",
			func(m []string) Args { return Args{"query": strings.TrimSpace(m[1])} },
			"正在搜索{query}",
		},
	}

	r := &Router{rules: make([]rule, 0, len(specs))}
	for _, s := range specs {
		r.rules = append(r.rules, rule{
			pattern: regexp.MustCompile(`(?i)` + s.pattern),
			tool:    s.tool,
			extract: s.extract,
			hint:    s.hint,
		})
	}
	return r
}

// Route matches text against the rules in order. A rule that extracts
// an empty "query" is skipped so later rules or the planner can take
// the utterance instead. Returns nil when nothing matches.
func (r *Router) Route(text string) *RouteMatch {
	text = strings.TrimSpace(text)
	for _, rule := range r.rules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		args := rule.extract(m)
		if q, ok := args["query"]; ok && q == "" {
			continue
		}
		slog.Info("router matched", "text", text, "tool", rule.tool, "args", fmt.Sprint(args))
		return &RouteMatch{Tool: rule.tool, Args: args, Hint: FormatHint(rule.hint, args)}
	}
	return nil
}

// FormatHint substitutes {key} placeholders in a hint template with
// argument values. Unknown placeholders are left intact.
func FormatHint(template string, args Args) string {
	out := template
	for k, v := range args {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
