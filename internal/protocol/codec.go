// Package protocol translates tool calls into A2A task messages and agent
// responses back into results.
package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/tools"
)

const (
	// StateError is the task state agents report on failure.
	StateError = "error"
	// StateUnknown is reported when the response carries no status.
	StateUnknown = "unknown"

	completedPlaceholder = "Task completed successfully"
	noStatusPlaceholder  = "No status information available"
)

// AcceptedOutputModes are the output modes requested from agents.
var AcceptedOutputModes = []string{"text", "application/json"}

// Codec encodes tool calls and decodes task responses.
type Codec struct {
	templates *tools.Registry
}

// NewCodec creates a codec over the given template registry. A nil registry
// selects tools.DefaultRegistry.
func NewCodec(templates *tools.Registry) *Codec {
	if templates == nil {
		templates = tools.DefaultRegistry
	}
	return &Codec{templates: templates}
}

// Instruction renders the natural-language instruction for a tool call.
func (c *Codec) Instruction(toolName string, params map[string]interface{}) string {
	if fn, ok := c.templates.Lookup(toolName); ok {
		return fn(tools.Params(params))
	}
	instruction := fmt.Sprintf("Execute tool '%s'", toolName)
	if len(params) > 0 {
		instruction += " with parameters: " + FormatParams(params)
	}
	return instruction
}

// Encode builds the task request for a tool call.
func (c *Codec) Encode(taskID, toolName string, params map[string]interface{}) domain.TaskRequest {
	return NewTaskRequest(taskID, c.Instruction(toolName, params))
}

// NewTaskRequest wraps an instruction in an A2A task request.
func NewTaskRequest(taskID, instruction string) domain.TaskRequest {
	return domain.TaskRequest{
		ID:                  taskID,
		AcceptedOutputModes: append([]string(nil), AcceptedOutputModes...),
		Message: domain.TaskMessage{
			Role:  "user",
			Parts: []domain.Part{{Type: "text", Text: instruction}},
		},
	}
}

// Decode extracts the task state and result text from a response. It returns
// a *domain.AgentError when the agent reported a failure.
func (c *Codec) Decode(resp *domain.TaskResponse) (string, string, error) {
	return Decode(resp)
}

// Decode is the registry-independent implementation of Codec.Decode.
func Decode(resp *domain.TaskResponse) (string, string, error) {
	if resp == nil || resp.Result == nil || resp.Result.Status == nil {
		return StateUnknown, noStatusPlaceholder, nil
	}
	status := resp.Result.Status

	var texts []string
	if status.Message != nil {
		for _, part := range status.Message.Parts {
			if part.Type == "text" && part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
	}
	result := completedPlaceholder
	if len(texts) > 0 {
		result = strings.Join(texts, "\n")
	}

	if status.State == StateError || strings.Contains(strings.ToLower(result), "error") {
		return status.State, result, &domain.AgentError{Result: result}
	}
	return status.State, result, nil
}

// FormatParams renders a parameter map as "{k1=v1, k2=v2}" with sorted keys.
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, params[k])
	}
	b.WriteByte('}')
	return b.String()
}
