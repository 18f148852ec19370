// File: internal/agent/models.go
package agent

import "github.com/xkilldash9x/openapi-seeker/internal/capability"

// ActionKind is the decision the model makes for one turn.
type ActionKind string

const (
	ActionQueryTools     ActionKind = "query_tools"
	ActionQueryPrompts   ActionKind = "query_prompts"
	ActionQueryResources ActionKind = "query_resources"
	ActionCallTool       ActionKind = "call_tool"
	ActionGetPrompt      ActionKind = "get_prompt"
	ActionReadResource   ActionKind = "read_resource"
)

// ActionKinds lists every kind in the order they are presented to the model.
var ActionKinds = []ActionKind{
	ActionQueryTools,
	ActionQueryPrompts,
	ActionQueryResources,
	ActionCallTool,
	ActionGetPrompt,
	ActionReadResource,
}

// Known reports whether k is one of ActionKinds.
func (k ActionKind) Known() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Targeted reports whether k addresses a single named capability, in which
// case Action.Name is required.
func (k ActionKind) Targeted() bool {
	return k == ActionCallTool || k == ActionGetPrompt || k == ActionReadResource
}

// CapabilityKind maps k onto the capability namespace it lists or invokes.
func (k ActionKind) CapabilityKind() (capability.Kind, bool) {
	switch k {
	case ActionQueryTools, ActionCallTool:
		return capability.KindTool, true
	case ActionQueryPrompts, ActionGetPrompt:
		return capability.KindPrompt, true
	case ActionQueryResources, ActionReadResource:
		return capability.KindResource, true
	}
	return "", false
}

// Action is the model's structured decision for one turn. For read_resource
// the Name is the resource URI.
type Action struct {
	Kind        ActionKind     `json:"kind"`
	Name        string         `json:"name,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
}

// ActionSchema is the JSON Schema the model's answer must satisfy.
func ActionSchema() map[string]any {
	kinds := make([]string, len(ActionKinds))
	for i, k := range ActionKinds {
		kinds[i] = string(k)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind": map[string]any{
				"type":        "string",
				"enum":        kinds,
				"description": "What to do this turn.",
			},
			"name": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Tool or prompt name, or resource URI. Only for call_tool, get_prompt and read_resource.",
			},
			"arguments": map[string]any{
				"type":        []string{"object", "null"},
				"description": "Arguments of the named capability. Only for call_tool, get_prompt and read_resource.",
			},
			"explanation": map[string]any{
				"type":        []string{"string", "null"},
				"description": "One sentence on why this action was chosen.",
			},
		},
		"required": []string{"kind"},
	}
}
