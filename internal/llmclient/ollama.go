// internal/llmclient/ollama.go
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
)

const (
	ollamaChatPath     = "/api/chat"
	maxStreamLineBytes = 1 << 20
)

// OllamaClient speaks the Ollama chat API and consumes its NDJSON stream.
type OllamaClient struct {
	endpoint    string
	model       string
	temperature float32
	httpClient  *http.Client
	logger      *zap.Logger
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
}

type ollamaRequest struct {
	Model          string         `json:"model"`
	ResponseFormat string         `json:"response_format"`
	Format         map[string]any `json:"format,omitempty"`
	Messages       []Message      `json:"messages"`
	Stream         bool           `json:"stream"`
	Options        ollamaOptions  `json:"options"`
}

type ollamaChunk struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// NewOllamaClient builds a client for cfg.Endpoint using model.
func NewOllamaClient(cfg config.LLMConfig, model string, logger *zap.Logger) (*OllamaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ollama endpoint is required")
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	return &OllamaClient{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		model:       model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.APITimeout},
		logger:      logger.Named("llm_client.ollama"),
	}, nil
}

// Chat posts req and concatenates the streamed message fragments.
func (c *OllamaClient) Chat(ctx context.Context, req Request) (string, error) {
	payload := ollamaRequest{
		Model:          c.model,
		ResponseFormat: "json",
		Format:         req.Schema,
		Messages:       req.Messages,
		Stream:         true,
		Options:        ollamaOptions{Temperature: c.temperature},
	}
	if req.Model != "" {
		payload.Model = req.Model
	}
	if req.Temperature != nil {
		payload.Options.Temperature = *req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+ollamaChatPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Network error during LLM request", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("Ollama returned error status", zap.Int("status", resp.StatusCode), zap.String("response", string(snippet)))
		return "", fmt.Errorf("%w: status %d: %s", ErrModelUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	content, chunks, err := readStream(resp.Body)
	if err != nil {
		return "", err
	}

	c.logger.Debug("LLM generation complete (Ollama)",
		zap.String("model", payload.Model),
		zap.Int("chunks", chunks),
		zap.Int("chars", len(content)),
		zap.Duration("duration", time.Since(start)),
	)
	return content, nil
}

// readStream concatenates message.content from each NDJSON line until a line
// with done set. A stream that ends without done is accepted as complete.
func readStream(r io.Reader) (string, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)

	var (
		sb     strings.Builder
		chunks int
	)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", chunks, fmt.Errorf("%w: malformed stream line: %w", ErrModelUnavailable, err)
		}
		if chunk.Error != "" {
			return "", chunks, fmt.Errorf("%w: %s", ErrModelUnavailable, chunk.Error)
		}
		chunks++
		sb.WriteString(chunk.Message.Content)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", chunks, fmt.Errorf("%w: failed to read stream: %w", ErrModelUnavailable, err)
	}
	return sb.String(), chunks, nil
}
