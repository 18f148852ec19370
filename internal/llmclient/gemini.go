// internal/llmclient/gemini.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
)

// GeminiClient sends chats to the Gemini API through the genai SDK.
type GeminiClient struct {
	models      *genai.Models
	model       string
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

// NewGeminiClient initializes the SDK client. cfg.Endpoint, when set,
// replaces the default API base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, model string, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(cfg.Endpoint, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		models:      client.Models,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     cfg.APITimeout,
		logger:      logger.Named("llm_client.gemini"),
	}, nil
}

// Chat implements Client. System messages become the system instruction and
// assistant messages are sent with the model role.
func (c *GeminiClient) Chat(ctx context.Context, req Request) (string, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(temperature),
		ResponseMIMEType: "application/json",
	}

	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(req.Schema) > 0 {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return "", fmt.Errorf("failed to marshal response schema: %w", err)
		}
		system = append(system, "Respond with a single JSON document matching this JSON Schema:\n"+string(schema))
	}
	if len(system) > 0 {
		gc.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini request has no user or assistant messages")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Error("Gemini API returned error status", zap.Int("status", apiErr.Code), zap.String("message", apiErr.Message))
		} else {
			c.logger.Warn("Network error during LLM request", zap.Error(err))
		}
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini API returned no candidates", ErrModelUnavailable)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini API returned empty content (Reason: %s)", ErrModelUnavailable, resp.Candidates[0].FinishReason)
	}

	fields := []zap.Field{zap.String("model", model), zap.Duration("duration", time.Since(start))}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("completion_tokens", u.CandidatesTokenCount),
			zap.Int32("total_tokens", u.TotalTokenCount),
		)
	}
	c.logger.Info("LLM generation complete (Gemini)", fields...)
	return text, nil
}
