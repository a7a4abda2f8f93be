// Package models defines the chat completion interface the agent loop drives,
// implemented per provider in the openai and anthropic subpackages.
package models

import (
	"context"
	"strings"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

// ToolDefinition describes a tool advertised to the model, with a JSON-schema
// parameter definition.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is a provider-agnostic chat completion request.
type CompletionRequest struct {
	Messages    []conversation.ChatMessage
	Tools       []ToolDefinition
	ToolChoice  string // "auto", "none", "required", or empty for the provider default
	MaxTokens   int64
	Temperature float64
}

// CompletionResponse carries either free text, structured tool calls, or both.
type CompletionResponse struct {
	Content   string
	ToolCalls []conversation.ToolCall
}

// ChatClient is the LLM chat interface consumed by the agent loop.
type ChatClient interface {
	// Complete performs a single chat completion call.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider model name.
	Name() string
}

// toolUnsupportedMarkers are error substrings providers return when the
// selected model cannot do tool calling.
var toolUnsupportedMarkers = []string{
	"does not support tools",
	"does not support tool",
	"tool use is not supported",
	"tools is not supported",
	"function calling is not supported",
	"no support for function calling",
	"tool_use",
}

// IsToolUnsupported reports whether err indicates the selected model does not
// support tool calling, which triggers the loop's non-tool fallback mode.
func IsToolUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "tool") && !strings.Contains(msg, "function") {
		return false
	}
	for _, marker := range toolUnsupportedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
