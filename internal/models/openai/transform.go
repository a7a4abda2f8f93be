package openai

import (
	"fmt"

	"github.com/openai/openai-go"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
)

// transformMessages converts conversation messages to OpenAI chat completion
// message params. System messages are included inline in the messages array.
func transformMessages(msgs []conversation.ChatMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	var messages []openai.ChatCompletionMessageParamUnion

	for _, msg := range msgs {
		switch msg.Role {
		case conversation.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))

		case conversation.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))

		case conversation.RoleAssistant:
			converted, err := convertAssistantMessage(msg)
			if err != nil {
				return nil, err
			}
			messages = append(messages, converted)

		case conversation.RoleTool:
			if msg.ToolCallID == "" {
				return nil, fmt.Errorf("tool message missing tool_call_id")
			}
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))

		default:
			// Unknown roles degrade to user
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return messages, nil
}

// convertAssistantMessage builds an assistant message, carrying tool calls
// when present.
func convertAssistantMessage(msg conversation.ChatMessage) (openai.ChatCompletionMessageParamUnion, error) {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content), nil
	}

	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}

	assistantParam := openai.ChatCompletionAssistantMessageParam{
		ToolCalls: toolCalls,
	}
	if msg.Content != "" {
		assistantParam.Content.OfString.Value = msg.Content
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantParam}, nil
}

// transformTools converts tool definitions to OpenAI ChatCompletionToolParam.
func transformTools(tools []models.ToolDefinition) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}

		parameters := openai.FunctionParameters{}
		for k, v := range tool.Parameters {
			parameters[k] = v
		}
		if _, hasType := parameters["type"]; !hasType {
			parameters["type"] = "object"
		}

		result = append(result, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  parameters,
			},
		})
	}

	return result
}

// transformToolChoice maps the provider-agnostic tool choice onto the OpenAI
// union; "auto", "none", and "required" pass through as-is.
func transformToolChoice(choice string) openai.ChatCompletionToolChoiceOptionUnionParam {
	if choice == "any" {
		choice = "required"
	}
	return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(choice)}
}

// transformCompletion converts an OpenAI ChatCompletion to a CompletionResponse.
func transformCompletion(completion *openai.ChatCompletion) (*models.CompletionResponse, error) {
	if completion == nil {
		return nil, fmt.Errorf("nil completion")
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := completion.Choices[0]

	response := &models.CompletionResponse{
		Content: choice.Message.Content,
	}

	for _, toolCall := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, conversation.ToolCall{
			ID:        toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		})
	}

	return response, nil
}
