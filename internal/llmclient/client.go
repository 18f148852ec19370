// Package llmclient talks to the language model endpoints used by the agent.
package llmclient

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrModelUnavailable is returned when the endpoint cannot be reached, answers
// with a non-success status or reports an error in its stream.
var ErrModelUnavailable = errors.New("model unavailable")

// Role of a chat message as understood by the endpoints.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Tier selects between the decision model and the cheaper delegate model.
type Tier string

const (
	TierFast     Tier = "fast"
	TierPowerful Tier = "powerful"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion. Schema, when set, is the JSON Schema
// the answer must follow. Model overrides the client's configured model.
type Request struct {
	Model       string
	Messages    []Message
	Schema      map[string]any
	Temperature *float32
	Tier        Tier
}

// Client produces the complete text of one model answer.
type Client interface {
	Chat(ctx context.Context, req Request) (string, error)
}
