package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

func textResponse(state string, parts ...domain.Part) *domain.TaskResponse {
	return &domain.TaskResponse{
		ID: "task-1",
		Result: &domain.TaskResult{
			ID: "task-1",
			Status: &domain.TaskStatus{
				State:   state,
				Message: &domain.TaskMessage{Role: "agent", Parts: parts},
			},
		},
	}
}

func TestEncodeKnownTool(t *testing.T) {
	c := NewCodec(nil)
	req := c.Encode("task-1", "create_workshop_tool", map[string]interface{}{"workshop_name": "Foo"})

	assert.Equal(t, "task-1", req.ID)
	assert.Equal(t, []string{"text", "application/json"}, req.AcceptedOutputModes)
	assert.Equal(t, "user", req.Message.Role)
	require.Len(t, req.Message.Parts, 1)
	assert.Equal(t, "text", req.Message.Parts[0].Type)
	assert.Contains(t, req.Message.Parts[0].Text, "'Foo'")
}

func TestEncodeWireShape(t *testing.T) {
	req := NewCodec(nil).Encode("t-9", "analyze_repository", map[string]interface{}{"repository_url": "https://git/x"})
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "t-9",
		"acceptedOutputModes": ["text", "application/json"],
		"message": {"role": "user", "parts": [{"type": "text", "text": "Analyze repository at https://git/x"}]}
	}`, string(data))
}

func TestEncodeUnknownToolFallsBack(t *testing.T) {
	c := NewCodec(nil)
	assert.Equal(t, "Execute tool 'reindex'", c.Instruction("reindex", nil))
	assert.Equal(t,
		"Execute tool 'reindex' with parameters: {force=true, index=docs}",
		c.Instruction("reindex", map[string]interface{}{"index": "docs", "force": true}))
}

func TestDecodeJoinsTextParts(t *testing.T) {
	state, result, err := Decode(textResponse("completed",
		domain.Part{Type: "text", Text: "A"},
		domain.Part{Type: "data"},
		domain.Part{Type: "text", Text: "B"},
	))
	require.NoError(t, err)
	assert.Equal(t, "completed", state)
	assert.Equal(t, "A\nB", result)
}

func TestDecodePlaceholders(t *testing.T) {
	state, result, err := Decode(textResponse("completed"))
	require.NoError(t, err)
	assert.Equal(t, "completed", state)
	assert.Equal(t, "Task completed successfully", result)

	var resp domain.TaskResponse
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","result":{"id":"x","status":{"state":"completed","message":{"parts":[{"type":"text"}]}}}}`), &resp))
	_, result, err = Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "Task completed successfully", result)

	_, result, err = Decode(textResponse("completed",
		domain.Part{Type: "text"},
		domain.Part{Type: "text", Text: "only this"},
	))
	require.NoError(t, err)
	assert.Equal(t, "only this", result)

	state, result, err = Decode(&domain.TaskResponse{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "unknown", state)
	assert.Equal(t, "No status information available", result)
}

func TestDecodeDetectsAgentErrors(t *testing.T) {
	_, _, err := Decode(textResponse("error", domain.Part{Type: "text", Text: "boom"}))
	var agentErr *domain.AgentError
	require.True(t, errors.As(err, &agentErr))
	assert.Equal(t, "boom", agentErr.Result)
	assert.ErrorIs(t, err, domain.ErrAgentReported)

	_, result, err := Decode(textResponse("completed", domain.Part{Type: "text", Text: "Validation ERROR: missing module"}))
	require.Error(t, err)
	assert.Equal(t, "Validation ERROR: missing module", result)
}

func TestInstructionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	c := NewCodec(nil)

	properties.Property("known templates quote the workshop name", prop.ForAll(
		func(name string) bool {
			got := c.Instruction("update_workshop_tool", map[string]interface{}{"workshop_name": name})
			return strings.Contains(got, "'"+name+"'")
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("encoding is deterministic", prop.ForAll(
		func(tool, key, value string) bool {
			params := map[string]interface{}{key: value, "z": 1}
			return c.Instruction(tool, params) == c.Instruction(tool, params)
		},
		gen.Identifier(), gen.Identifier(), gen.AlphaString(),
	))

	properties.Property("decode never loses text parts", prop.ForAll(
		func(a, b string) bool {
			_, result, err := Decode(textResponse("completed",
				domain.Part{Type: "text", Text: a}, domain.Part{Type: "text", Text: b}))
			if strings.Contains(strings.ToLower(a+"\n"+b), "error") {
				return err != nil
			}
			return err == nil && result == a+"\n"+b
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
