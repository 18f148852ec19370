// File: internal/agent/prompt.go
package agent

import (
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/openapi-seeker/internal/capability"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
	"github.com/xkilldash9x/openapi-seeker/internal/transcript"
)

// systemPrompt is the fixed instruction sent first on every turn.
func systemPrompt() string {
	schema, _ := json.MarshalToString(ActionSchema())
	return fmt.Sprintf(`You are an autonomous web crawling agent. You drive a browser through a fixed set of tools, resources and prompts.
Each turn you choose exactly one action and answer with a single JSON object matching this JSON Schema:
%s

Rules:
- Fields unrelated to the chosen action kind must be null or empty.
- "name" and "arguments" are used only by call_tool, get_prompt and read_resource. For read_resource, "name" is the resource URI.
- query_tools, query_prompts and query_resources list what is available, with argument schemas.
- To keep crawling, call the tool %q with an %q argument mapping link URLs to an integer relevance from 0 to 100.
- When a page serves an API schema document, call the tool %q with its url.
- Failed actions come back as an error you can react to on the next turn.`,
		schema, capability.ToolProceed, capability.ParamEstimations, capability.ToolReport)
}

// buildMessages assembles one model request: system prompt, the instruction
// of the day with the current context, then the transcript.
func buildMessages(instruction string, snap capability.Snapshot, history []transcript.Entry) []llmclient.Message {
	ctxDoc, _ := json.MarshalToString(snap)
	msgs := make([]llmclient.Message, 0, len(history)+2)
	msgs = append(msgs,
		llmclient.Message{Role: llmclient.RoleSystem, Content: systemPrompt()},
		llmclient.Message{Role: llmclient.RoleUser, Content: "Instruction: " + instruction + "\nContext: " + ctxDoc},
	)
	for _, e := range history {
		msgs = append(msgs, llmclient.Message{Role: messageRole(e.Role), Content: e.Content})
	}
	return msgs
}

func messageRole(r transcript.Role) llmclient.Role {
	if r == transcript.RoleAssistant {
		return llmclient.RoleAssistant
	}
	return llmclient.RoleUser
}

// outcome is the transcript document describing one dispatched action.
type outcome struct {
	Action  ActionKind          `json:"action,omitempty"`
	Name    string              `json:"name,omitempty"`
	Result  any                 `json:"result,omitempty"`
	Error   *diagnostic         `json:"error,omitempty"`
	Context capability.Snapshot `json:"context"`
}

type diagnostic struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (o outcome) String() string {
	s, err := json.MarshalToString(o)
	if err != nil {
		return fmt.Sprintf("%s %s: unrenderable outcome: %v", o.Action, o.Name, err)
	}
	return s
}
