package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/voxpod/voxpod/pkg/tool"
)

var weatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"

// weatherReply is the subset of the OpenWeatherMap response we speak.
type weatherReply struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

func registerWeather(reg *tool.Registry, deps *Deps) error {
	return reg.Register(&tool.Definition{
		Name:        "weather.query",
		Description: "Query current weather and forecast for a city",
		Params: []tool.Param{
			{Name: "query", Description: "weather query text (e.g. '今天天气' or 'weather in Tokyo')"},
			{Name: "city", Description: "city name"},
		},
		LongRunning: true,
		Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
			cfg := call.Session.Config
			apiKey := cfg.Get(cfg.WeatherAPIKey, deps.WeatherAPIKey)
			if apiKey == "" {
				return tool.Speak("抱歉，天气服务还没有配置。请在管理后台设置天气API密钥。"), nil
			}
			city := call.Args["city"]
			if city == "" {
				city = cfg.Get(cfg.WeatherCity, deps.WeatherCity)
			}
			if city == "" {
				city = "Singapore"
			}

			q := url.Values{}
			q.Set("q", city)
			q.Set("appid", apiKey)
			q.Set("units", "metric")
			q.Set("lang", "zh_cn")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, weatherAPIURL+"?"+q.Encode(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := deps.httpClient().Do(req)
			if err != nil {
				slog.Error("weather api request failed", "error", err)
				return tool.Errorf("天气查询失败，请稍后再试。"), nil
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return tool.Speak(fmt.Sprintf("找不到城市%s的天气信息。", city)), nil
			}
			if resp.StatusCode != http.StatusOK {
				slog.Error("weather api error", "status", resp.StatusCode)
				return tool.Errorf("天气查询失败，请稍后再试。"), nil
			}

			var data weatherReply
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return tool.Errorf("天气查询失败，请稍后再试。"), nil
			}

			desc := ""
			if len(data.Weather) > 0 {
				desc = data.Weather[0].Description
			}
			name := data.Name
			if name == "" {
				name = city
			}
			text := fmt.Sprintf("%s现在%s，温度%.0f度，体感%.0f度，湿度%d%%，风速%.1f米每秒。",
				name, desc, data.Main.Temp, data.Main.FeelsLike, data.Main.Humidity, data.Wind.Speed)
			return tool.Speak(text), nil
		},
	})
}
