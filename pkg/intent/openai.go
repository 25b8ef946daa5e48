package intent

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxpod/voxpod/pkg/store"
)

// clientCacheMax bounds the per-credential client cache.
const clientCacheMax = 20

// OpenAIPlanner plans intents with OpenAI-compatible chat completions.
// Devices with their own API credentials get a cached client keyed by
// (base URL, API key), evicted LRU.
type OpenAIPlanner struct {
	Model string

	defaultClient  *openai.Client
	defaultBaseURL string

	mu    sync.Mutex
	cache map[clientKey]*list.Element
	order *list.List
}

type clientKey struct {
	baseURL string
	apiKey  string
}

type clientEntry struct {
	key    clientKey
	client *openai.Client
}

// NewOpenAIPlanner creates a planner with default credentials used by
// devices without their own.
func NewOpenAIPlanner(apiKey, baseURL, model string) *OpenAIPlanner {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIPlanner{
		Model:          model,
		defaultClient:  &client,
		defaultBaseURL: baseURL,
		cache:          make(map[clientKey]*list.Element),
		order:          list.New(),
	}
}

// client returns the chat client for a device config, creating and
// caching one when the device carries its own credentials.
func (p *OpenAIPlanner) client(cfg store.UserConfig) *openai.Client {
	if cfg.APIKey == "" {
		return p.defaultClient
	}
	key := clientKey{baseURL: cfg.Get(cfg.BaseURL, p.defaultBaseURL), apiKey: cfg.APIKey}

	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.cache[key]; ok {
		p.order.MoveToFront(el)
		return el.Value.(*clientEntry).client
	}
	if p.order.Len() >= clientCacheMax {
		oldest := p.order.Back()
		p.order.Remove(oldest)
		delete(p.cache, oldest.Value.(*clientEntry).key)
	}

	opts := []option.RequestOption{option.WithAPIKey(key.apiKey)}
	if key.baseURL != "" {
		opts = append(opts, option.WithBaseURL(key.baseURL))
	}
	client := openai.NewClient(opts...)
	p.cache[key] = p.order.PushFront(&clientEntry{key: key, client: &client})
	return &client
}

// Plan implements Planner.
func (p *OpenAIPlanner) Plan(ctx context.Context, req Request) (*Intent, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(buildPrompt(req.Catalog, time.Now())),
	}
	for _, m := range req.History {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Text))

	model := req.Config.Get(req.Config.ChatModel, p.Model)
	resp, err := p.client(req.Config).Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(maxPlanTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("intent: plan: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("intent: plan: no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("intent raw", "content", truncate(raw, 200))
	return parseIntent(raw), nil
}
