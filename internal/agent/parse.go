// File: internal/agent/parse.go
package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ErrSchemaViolation is returned when a model answer is not a valid Action.
var ErrSchemaViolation = errors.New("schema violation")

// actionJSON keeps integers intact so capability arguments can tell 3 from 3.5.
var actionJSON = jsoniter.Config{
	EscapeHTML:             true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// rawAction distinguishes a missing kind from an empty one.
type rawAction struct {
	Kind        *string        `json:"kind"`
	Name        *string        `json:"name"`
	Arguments   map[string]any `json:"arguments"`
	Explanation *string        `json:"explanation"`
}

// ParseAction extracts the JSON document from a model answer and validates
// it structurally. Unknown kinds pass; they are rejected at dispatch.
func ParseAction(response string) (Action, error) {
	doc := extractJSON(response)
	if doc == "" {
		return Action{}, fmt.Errorf("%w: could not find any JSON in the model response", ErrSchemaViolation)
	}

	var raw rawAction
	if err := actionJSON.UnmarshalFromString(doc, &raw); err != nil {
		return Action{}, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	if raw.Kind == nil || strings.TrimSpace(*raw.Kind) == "" {
		return Action{}, fmt.Errorf("%w: missing required field \"kind\"", ErrSchemaViolation)
	}

	action := Action{
		Kind:      ActionKind(strings.ToLower(strings.TrimSpace(*raw.Kind))),
		Arguments: raw.Arguments,
	}
	if raw.Name != nil {
		action.Name = strings.TrimSpace(*raw.Name)
	}
	if raw.Explanation != nil {
		action.Explanation = *raw.Explanation
	}
	if err := action.Validate(); err != nil {
		return Action{}, err
	}
	return action, nil
}

// Validate enforces that name is present exactly for targeted kinds and that
// query kinds carry neither name nor arguments.
func (a Action) Validate() error {
	if !a.Kind.Known() {
		return nil
	}
	if a.Kind.Targeted() {
		if a.Name == "" {
			return fmt.Errorf("%w: %s requires \"name\"", ErrSchemaViolation, a.Kind)
		}
		return nil
	}
	if a.Name != "" {
		return fmt.Errorf("%w: %s must not carry \"name\"", ErrSchemaViolation, a.Kind)
	}
	if len(a.Arguments) > 0 {
		return fmt.Errorf("%w: %s must not carry \"arguments\"", ErrSchemaViolation, a.Kind)
	}
	return nil
}

// extractJSON prefers a fenced code block, then the outermost braces.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if m := jsonBlockRegex.FindStringSubmatch(response); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first != -1 && last > first {
		return response[first : last+1]
	}
	return response
}
