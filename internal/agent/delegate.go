package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/capability"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
)

// ModelDelegate answers delegated sub-tasks with the fast model tier.
type ModelDelegate struct {
	logger  *zap.Logger
	model   llmclient.Client
	timeout time.Duration
}

var _ capability.Delegator = (*ModelDelegate)(nil)

// NewModelDelegate returns a delegate backed by model. Each call is bounded
// by timeout, the same budget a turn gets; zero means no bound.
func NewModelDelegate(logger *zap.Logger, model llmclient.Client, timeout time.Duration) *ModelDelegate {
	return &ModelDelegate{logger: logger.Named("delegate"), model: model, timeout: timeout}
}

var delegateSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"answer": map[string]any{"type": "string"}},
	"required":   []string{"answer"},
}

// Delegate implements capability.Delegator. The answer field of the model's
// JSON document is returned; anything else is returned verbatim.
func (d *ModelDelegate) Delegate(ctx context.Context, task string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	resp, err := d.model.Chat(ctx, llmclient.Request{
		Tier:   llmclient.TierFast,
		Schema: delegateSchema,
		Messages: []llmclient.Message{
			{Role: llmclient.RoleSystem, Content: `You are an assistant to a web crawling agent. Solve the task and reply with {"answer": "..."}.`},
			{Role: llmclient.RoleUser, Content: task},
		},
	})
	if err != nil {
		return "", fmt.Errorf("delegate model failed: %w", err)
	}

	var doc struct {
		Answer *string `json:"answer"`
	}
	if err := json.UnmarshalFromString(extractJSON(resp), &doc); err == nil && doc.Answer != nil {
		return *doc.Answer, nil
	}
	d.logger.Debug("Delegate answer was not a JSON document, returning it verbatim.")
	return strings.TrimSpace(resp), nil
}
