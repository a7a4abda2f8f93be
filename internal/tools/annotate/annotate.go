// Package annotate provides the tool that attaches notes to roster papers.
package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkantor-dev/research_agent/internal/agents"
	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
)

// Args represents the arguments for the annotate tool.
type Args struct {
	PaperIndex int    `json:"paper_index"`
	Note       string `json:"note"`
}

type Tool struct{}

func New() *Tool {
	return &Tool{}
}

func (t *Tool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "annotate_paper",
		Description: "Attach a note to a paper in the session roster, e.g. a reminder or a key takeaway.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"paper_index": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"description": "Roster index of the paper to annotate",
				},
				"note": map[string]any{
					"type":        "string",
					"description": "The note to attach",
				},
			},
			"required": []string{"paper_index", "note"},
		},
	}
}

func (t *Tool) Execute(_ context.Context, args json.RawMessage, agentCtx *conversation.AgentContext) (*agents.Execution, error) {
	var a Args
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	if strings.TrimSpace(a.Note) == "" {
		return nil, fmt.Errorf("note must not be empty")
	}

	paper := agentCtx.PaperAt(a.PaperIndex)
	if paper == nil {
		return nil, fmt.Errorf("no paper at index %d; the roster has %d papers", a.PaperIndex, len(agentCtx.Papers))
	}

	return &agents.Execution{
		Result: agents.ToolResult{
			Success: true,
			Data: map[string]any{
				"paper_index": a.PaperIndex,
				"title":       paper.Title,
				"note":        a.Note,
			},
		},
		Annotations: map[int]string{a.PaperIndex: a.Note},
	}, nil
}
