package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiPlanner plans intents with the Gemini API.
type GeminiPlanner struct {
	Model  string
	client *genai.Client
}

// NewGeminiPlanner creates a Gemini-backed planner.
func NewGeminiPlanner(ctx context.Context, apiKey, model string) (*GeminiPlanner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("intent: gemini client: %w", err)
	}
	return &GeminiPlanner{Model: model, client: client}, nil
}

// Plan implements Planner.
func (p *GeminiPlanner) Plan(ctx context.Context, req Request) (*Intent, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Text, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildPrompt(req.Catalog, time.Now()), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   maxPlanTokens,
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("intent: plan: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("intent: plan: no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	raw := sb.String()
	slog.Debug("intent raw", "content", truncate(raw, 200))
	return parseIntent(raw), nil
}
