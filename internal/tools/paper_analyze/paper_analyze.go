// Package paper_analyze provides the full-text paper analysis tool.
package paper_analyze //nolint:revive // var-naming: using underscores for domain clarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/mkantor-dev/research_agent/internal/agents"
	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

const (
	// defaultTextBudget caps how much extracted text goes to the model.
	defaultTextBudget = 20000

	// maxPDFBytes bounds the download size.
	maxPDFBytes = 25 << 20
)

var extraneousWhitespace = regexp.MustCompile(`\s+`)

const analysisSystemPrompt = `You are analyzing an academic paper for a researcher. Ground every statement in the provided text. Summarize the problem, method, and findings, and answer the researcher's question if one is given. Say so explicitly when the text does not contain the answer.`

// Config holds configuration for the paper analysis tool.
type Config struct {
	LLM        models.ChatClient
	Logger     logger.Logger
	Timeout    time.Duration
	TextBudget int
}

// Args represents the arguments for the paper analysis tool.
type Args struct {
	PaperIndex int    `json:"paper_index"`
	Question   string `json:"question,omitempty"`
}

// Tool downloads a roster paper's PDF, extracts its text, and asks the
// model for an analysis. When the PDF cannot be fetched or read, the
// abstract is analyzed instead.
type Tool struct {
	llm        models.ChatClient
	logger     logger.Logger
	client     *http.Client
	textBudget int
}

func New(cfg Config) *Tool {
	if cfg.LLM == nil || cfg.Logger == nil {
		panic("paper_analyze: missing required dependency")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TextBudget <= 0 {
		cfg.TextBudget = defaultTextBudget
	}
	return &Tool{
		llm:        cfg.LLM,
		logger:     cfg.Logger.WithFields(logger.StringField("component", "paper_analyze")),
		client:     &http.Client{Timeout: cfg.Timeout},
		textBudget: cfg.TextBudget,
	}
}

func (t *Tool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "analyze_paper",
		Description: "Read a paper from the session roster and produce an analysis of its content, optionally focused on a specific question.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"paper_index": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"description": "Roster index of the paper to analyze",
				},
				"question": map[string]any{
					"type":        "string",
					"description": "Optional question to focus the analysis on",
				},
			},
			"required": []string{"paper_index"},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage, agentCtx *conversation.AgentContext) (*agents.Execution, error) {
	var a Args
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}

	paper := agentCtx.PaperAt(a.PaperIndex)
	if paper == nil {
		return nil, fmt.Errorf("no paper at index %d; the roster has %d papers", a.PaperIndex, len(agentCtx.Papers))
	}

	text, source := t.paperText(ctx, paper)
	if text == "" {
		return nil, fmt.Errorf("no text available for %q", paper.Title)
	}

	analysis, err := t.analyze(ctx, paper, text, a.Question)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	return &agents.Execution{
		Result: agents.ToolResult{
			Success: true,
			Data: map[string]any{
				"paper_index": a.PaperIndex,
				"title":       paper.Title,
				"source":      source,
				"analysis":    analysis,
			},
		},
		Analyses: 1,
	}, nil
}

// paperText returns the best available text for a paper and where it came
// from ("full_text" or "abstract").
func (t *Tool) paperText(ctx context.Context, paper *conversation.Paper) (string, string) {
	if paper.PDFURL != "" {
		text, err := t.fetchPDFText(ctx, paper.PDFURL)
		if err == nil && text != "" {
			return truncate(text, t.textBudget), "full_text"
		}
		if err != nil {
			t.logger.Warn("PDF extraction failed, falling back to abstract",
				logger.StringField("paper_id", paper.ID),
				logger.ErrorField(err))
		}
	}
	return truncate(paper.Abstract, t.textBudget), "abstract"
}

func (t *Tool) fetchPDFText(ctx context.Context, pdfURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pdf download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("pdf download failed: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}
	return strings.TrimSpace(extraneousWhitespace.ReplaceAllString(builder.String(), " ")), nil
}

func (t *Tool) analyze(ctx context.Context, paper *conversation.Paper, text, question string) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Paper: %s\nAuthors: %s\n\n", paper.Title, strings.Join(paper.Authors, ", "))
	if question != "" {
		fmt.Fprintf(&prompt, "Question: %s\n\n", question)
	}
	prompt.WriteString("Text:\n")
	prompt.WriteString(text)

	resp, err := t.llm.Complete(ctx, &models.CompletionRequest{
		Messages: []conversation.ChatMessage{
			{Role: conversation.RoleSystem, Content: analysisSystemPrompt},
			{Role: conversation.RoleUser, Content: prompt.String()},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("model returned empty analysis")
	}
	return resp.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
