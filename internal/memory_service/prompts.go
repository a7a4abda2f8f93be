package memory_service

import (
	"fmt"
	"strings"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

const summarizationSystemPrompt = `You are summarizing part of a research conversation. Produce a concise digest that preserves:
- what the user was trying to accomplish
- what was searched for and what was found
- which papers were analyzed and the findings
- paper index references (e.g. "paper 2")
Reply with the summary text only.`

const factExtractionSystemPrompt = `Extract durable key facts from this research conversation. Reply with a JSON array only, no prose, where each element is:
{"type": "<paper_conclusion|user_preference|research_direction|decision|entity>", "content": "<the fact>", "related_paper_indices": [<optional paper indices>]}
Return [] if there are no facts worth keeping.`

// renderTranscript flattens messages into prompt text. Tool results are
// truncated to a preview; assistant messages that triggered tool calls are
// represented by the tool names invoked plus any accompanying text.
func renderTranscript(msgs []conversation.ChatMessage) string {
	var b strings.Builder

	for _, msg := range msgs {
		switch msg.Role {
		case conversation.RoleTool:
			b.WriteString(fmt.Sprintf("tool result: %s\n", truncate(msg.Content, toolResultPreviewLen)))

		case conversation.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					names = append(names, tc.Name)
				}
				b.WriteString(fmt.Sprintf("assistant: [called %s]", strings.Join(names, ", ")))
				if msg.Content != "" {
					b.WriteString(" " + msg.Content)
				}
				b.WriteString("\n")
			} else {
				b.WriteString("assistant: " + msg.Content + "\n")
			}

		default:
			b.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
		}
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
