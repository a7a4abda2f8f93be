package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
)

// transformMessages converts conversation messages to Anthropic MessageParams.
// System messages are collected into a single system prompt since Anthropic
// carries them outside the messages array. Tool results become user-role
// messages holding a tool_result block.
func transformMessages(msgs []conversation.ChatMessage) ([]anthropic.MessageParam, string, error) {
	var messages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range msgs {
		switch msg.Role {
		case conversation.RoleSystem:
			if msg.Content != "" {
				if systemPrompt != "" {
					systemPrompt += "\n\n"
				}
				systemPrompt += msg.Content
			}

		case conversation.RoleUser:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
				},
			})

		case conversation.RoleAssistant:
			converted, err := convertAssistantMessage(msg)
			if err != nil {
				return nil, "", err
			}
			messages = append(messages, converted)

		case conversation.RoleTool:
			if msg.ToolCallID == "" {
				return nil, "", fmt.Errorf("tool message missing tool_call_id")
			}
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					{OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: msg.ToolCallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{
							{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
						},
					}},
				},
			})

		default:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
				},
			})
		}
	}

	return messages, systemPrompt, nil
}

// convertAssistantMessage builds an assistant message, converting tool calls
// to tool_use blocks.
func convertAssistantMessage(msg conversation.ChatMessage) (anthropic.MessageParam, error) {
	var blocks []anthropic.ContentBlockParamUnion

	if msg.Content != "" {
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfText: &anthropic.TextBlockParam{Text: msg.Content},
		})
	}

	for _, tc := range msg.ToolCalls {
		var input map[string]any
		if tc.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
				return anthropic.MessageParam{}, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
			}
		}
		if input == nil {
			input = map[string]any{}
		}

		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    tc.ID,
				Name:  tc.Name,
				Input: input,
			},
		})
	}

	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleAssistant,
		Content: blocks,
	}, nil
}

// transformTools converts tool definitions to Anthropic tool params.
func transformTools(tools []models.ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}

		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := tool.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if required, ok := tool.Parameters["required"]; ok {
			schema.Required = toStringSlice(required)
		}

		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		})
	}

	return result
}

// transformToolChoice maps the provider-agnostic tool choice onto the
// Anthropic union. Anthropic calls forced tool use "any".
func transformToolChoice(choice string) anthropic.ToolChoiceUnionParam {
	switch choice {
	case "none":
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	case "required", "any":
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

// transformMessage converts an Anthropic Message response to a CompletionResponse.
func transformMessage(message *anthropic.Message) (*models.CompletionResponse, error) {
	if message == nil {
		return nil, fmt.Errorf("message is nil")
	}

	response := &models.CompletionResponse{}

	for _, block := range message.Content {
		switch blockType := block.AsAny().(type) {
		case anthropic.TextBlock:
			if response.Content != "" {
				response.Content += "\n"
			}
			response.Content += blockType.Text

		case anthropic.ToolUseBlock:
			argsJSON, err := json.Marshal(blockType.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			response.ToolCalls = append(response.ToolCalls, conversation.ToolCall{
				ID:        blockType.ID,
				Name:      blockType.Name,
				Arguments: string(argsJSON),
			})
		}
	}

	return response, nil
}

func toStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		result := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}
