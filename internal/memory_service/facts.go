package memory_service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

// rawFact mirrors the extraction prompt's output schema.
type rawFact struct {
	Type                string `json:"type"`
	Content             string `json:"content"`
	RelatedPaperIndices []int  `json:"related_paper_indices"`
}

// parseFacts recovers the JSON array from the extraction output, tolerating
// code fences and surrounding prose, and drops entries missing a type or
// content or carrying an unknown type.
func parseFacts(output string) ([]conversation.KeyFact, error) {
	payload, err := recoverJSONArray(output)
	if err != nil {
		return nil, err
	}

	var raw []rawFact
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}

	now := time.Now()
	facts := make([]conversation.KeyFact, 0, len(raw))
	for _, r := range raw {
		if r.Type == "" || r.Content == "" {
			continue
		}
		factType := conversation.FactType(r.Type)
		if !conversation.ValidFactType(factType) {
			continue
		}
		facts = append(facts, conversation.KeyFact{
			Type:                factType,
			Content:             r.Content,
			RelatedPaperIndices: r.RelatedPaperIndices,
			ExtractedAt:         now,
		})
	}
	return facts, nil
}

// recoverJSONArray extracts the outermost JSON array from model output that
// may be wrapped in code fences or explanatory text.
func recoverJSONArray(output string) (string, error) {
	trimmed := strings.TrimSpace(output)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON array in output")
	}

	return trimmed[start : end+1], nil
}
