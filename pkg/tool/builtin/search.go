package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voxpod/voxpod/pkg/tool"
)

var searchAPIURL = "https://api.tavily.com/search"

// maxSpokenChars keeps search answers short enough for natural speech
// output.
const maxSpokenChars = 300

func registerSearch(reg *tool.Registry, deps *Deps) error {
	return reg.Register(&tool.Definition{
		Name:        "web.search",
		Description: "Search the web and summarize results",
		Params: []tool.Param{
			{Name: "query", Description: "search query text", Required: true},
		},
		LongRunning: true,
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			query := call.Args["query"]
			cfg := call.Session.Config
			apiKey := cfg.Get(cfg.SearchAPIKey, deps.SearchAPIKey)
			if apiKey == "" {
				return tool.Speak("抱歉，搜索服务还没有配置。"), nil
			}

			body, err := json.Marshal(map[string]any{
				"api_key":        apiKey,
				"query":          query,
				"search_depth":   "basic",
				"include_answer": true,
				"max_results":    3,
			})
			if err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchAPIURL, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := deps.httpClient().Do(req)
			if err != nil {
				slog.Error("search request failed", "error", err)
				return tool.Errorf("搜索失败，请稍后再试。"), nil
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				slog.Error("search api error", "status", resp.StatusCode)
				return tool.Errorf("搜索失败，请稍后再试。"), nil
			}

			var data struct {
				Answer  string `json:"answer"`
				Results []struct {
					Title   string `json:"title"`
					Content string `json:"content"`
				} `json:"results"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return tool.Errorf("搜索失败，请稍后再试。"), nil
			}

			if data.Answer != "" {
				return tool.Speak(truncateSpoken(data.Answer)), nil
			}
			if len(data.Results) == 0 {
				return tool.Speak(fmt.Sprintf("没有找到关于「%s」的搜索结果。", query)), nil
			}

			var snippets []string
			for i, r := range data.Results {
				if i == 3 {
					break
				}
				if r.Content == "" {
					continue
				}
				snippets = append(snippets, r.Title+"："+truncateRunes(r.Content, 100))
			}
			summary := truncateSpoken(strings.Join(snippets, "。"))
			return tool.Speak(fmt.Sprintf("关于%s，搜索结果如下：%s", query, summary)), nil
		},
	})
}

func truncateSpoken(s string) string {
	return truncateRunes(s, maxSpokenChars)
}

// truncateRunes cuts s to at most n runes, appending an ellipsis when
// anything was dropped.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
