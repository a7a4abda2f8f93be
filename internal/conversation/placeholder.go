package conversation

import "fmt"

// SummaryPlaceholder renders the synthetic system message that replaces a
// compressed slice of history. The compressor splices it into the live
// history, and cold-path recovery rebuilds it from the last persisted summary.
func SummaryPlaceholder(s ConversationSummary) ChatMessage {
	return ChatMessage{
		Role: RoleSystem,
		Content: fmt.Sprintf("[Conversation summary of messages %d-%d]\n%s",
			s.MessageRange.From, s.MessageRange.To, s.Content),
	}
}
