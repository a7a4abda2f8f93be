// Package anthropic provides a Claude implementation of models.ChatClient.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mkantor-dev/research_agent/internal/models"
)

// Client implements models.ChatClient for Anthropic's Messages API.
type Client struct {
	client    anthropic.Client
	modelName string
}

// New creates a new Claude chat client.
func New(apiKey, modelName string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	return &Client{
		client:    client,
		modelName: modelName,
	}, nil
}

// Name returns the model name.
func (c *Client) Name() string {
	return c.modelName
}

// Complete performs a single non-streaming Messages API call.
func (c *Client) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	messages, systemPrompt, err := transformMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to transform request: %w", err)
	}

	var maxTokens int64 = 4096
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: maxTokens,
		Messages:  messages,
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		params.Tools = transformTools(req.Tools)
		if req.ToolChoice != "" {
			params.ToolChoice = transformToolChoice(req.ToolChoice)
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	return transformMessage(resp)
}
