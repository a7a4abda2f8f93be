// Package openai provides an OpenAI GPT implementation of models.ChatClient.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mkantor-dev/research_agent/internal/models"
)

// Client implements models.ChatClient for OpenAI's chat completion API.
type Client struct {
	client    *openai.Client
	modelName string
}

// New creates a new OpenAI chat client.
func New(apiKey, modelName string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client := openai.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	return &Client{
		client:    &client,
		modelName: modelName,
	}, nil
}

// Name returns the model name.
func (c *Client) Name() string {
	return c.modelName
}

// Complete performs a single non-streaming chat completion call.
func (c *Client) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	messages, err := transformMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to transform request: %w", err)
	}

	var maxTokens int64 = 4096
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:     c.modelName,
		MaxTokens: openai.Int(maxTokens),
		Messages:  messages,
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		params.Tools = transformTools(req.Tools)
		if req.ToolChoice != "" {
			params.ToolChoice = transformToolChoice(req.ToolChoice)
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	return transformCompletion(completion)
}
