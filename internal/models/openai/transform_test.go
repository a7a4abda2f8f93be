package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
)

func TestTransformMessages(t *testing.T) {
	msgs := []conversation.ChatMessage{
		{Role: conversation.RoleSystem, Content: "You are a research assistant."},
		{Role: conversation.RoleUser, Content: "Find papers on attention."},
		{
			Role:    conversation.RoleAssistant,
			Content: "Searching now.",
			ToolCalls: []conversation.ToolCall{
				{ID: "call_1", Name: "search_papers", Arguments: `{"query":"attention"}`},
			},
		},
		{Role: conversation.RoleTool, Content: `{"success":true}`, ToolCallID: "call_1"},
	}

	result, err := transformMessages(msgs)
	require.NoError(t, err)
	require.Len(t, result, 4)

	assert.NotNil(t, result[0].OfSystem)
	assert.NotNil(t, result[1].OfUser)

	require.NotNil(t, result[2].OfAssistant)
	require.Len(t, result[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call_1", result[2].OfAssistant.ToolCalls[0].ID)
	assert.Equal(t, "search_papers", result[2].OfAssistant.ToolCalls[0].Function.Name)

	require.NotNil(t, result[3].OfTool)
	assert.Equal(t, "call_1", result[3].OfTool.ToolCallID)
}

func TestTransformMessagesToolWithoutID(t *testing.T) {
	msgs := []conversation.ChatMessage{
		{Role: conversation.RoleTool, Content: "orphan result"},
	}

	_, err := transformMessages(msgs)
	assert.Error(t, err)
}

func TestTransformTools(t *testing.T) {
	tools := []models.ToolDefinition{
		{
			Name:        "search_papers",
			Description: "Search arXiv for papers",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
		{
			// Missing name is skipped
			Description: "broken",
		},
	}

	result := transformTools(tools)
	require.Len(t, result, 1)
	assert.Equal(t, "search_papers", result[0].Function.Name)
	assert.Equal(t, "object", result[0].Function.Parameters["type"])
}

func TestTransformToolsDefaultsType(t *testing.T) {
	tools := []models.ToolDefinition{
		{Name: "noop", Parameters: map[string]any{"properties": map[string]any{}}},
	}

	result := transformTools(tools)
	require.Len(t, result, 1)
	assert.Equal(t, "object", result[0].Function.Parameters["type"])
}

func TestTransformToolChoice(t *testing.T) {
	assert.Equal(t, "auto", transformToolChoice("auto").OfAuto.Value)
	assert.Equal(t, "none", transformToolChoice("none").OfAuto.Value)
	assert.Equal(t, "required", transformToolChoice("required").OfAuto.Value)
	assert.Equal(t, "required", transformToolChoice("any").OfAuto.Value)
}
