package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type geminiClient struct {
	cfg    Config
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiClient creates a Client backed by the Gemini API.
func NewGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (Client, error) {
	cfg.Provider = ProviderGemini
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL + "/"}
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("llmclient: create gemini client: %w", err)
	}

	return &geminiClient{
		cfg:    cfg,
		client: gc,
		logger: logger.Named("llmclient"),
	}, nil
}

func (g *geminiClient) ChatCompletion(parentCtx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, fmt.Errorf("llmclient: request is nil")
	}
	if req.Model == "" {
		req.Model = g.cfg.Model
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}

	contents, genCfg := toGemini(req)
	if len(contents) == 0 {
		return nil, fmt.Errorf("llmclient: invalid request: no user or assistant content")
	}

	ctx, cancel := context.WithTimeout(parentCtx, g.cfg.UpstreamTimeout)
	defer cancel()

	result, err := g.client.Models.GenerateContent(ctx, req.Model, contents, genCfg)
	if err != nil {
		g.logger.Error("gemini request failed",
			zap.String("model", req.Model),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("llmclient: generate content: %w", err)
	}

	var text strings.Builder
	finish := ""
	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		for _, part := range result.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		finish = string(result.Candidates[0].FinishReason)
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("llmclient: empty response from gemini")
	}

	out := &ChatResponse{
		Created: time.Now(),
		Model:   req.Model,
		Choices: []ChatChoice{{
			Message:      ChatMessage{Role: RoleAssistant, Content: text.String()},
			FinishReason: finish,
		}},
		Usage: &Usage{},
	}
	if result.UsageMetadata != nil {
		out.Usage.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		out.Usage.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
		out.Usage.TotalTokens = int(result.UsageMetadata.TotalTokenCount)
	}

	g.logger.Info("gemini request completed",
		zap.String("model", req.Model),
		zap.String("session_id", req.SessionID),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// toGemini maps chat messages onto Gemini contents. System messages become
// the system instruction; assistant turns use the "model" role.
func toGemini(req *ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(req.Messages))

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if m.Content != "" {
				system = append(system, &genai.Part{Text: m.Content})
			}
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.TopP > 0 {
		p := req.TopP
		cfg.TopP = &p
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Stop) > 0 {
		cfg.StopSequences = req.Stop
	}
	return contents, cfg
}
