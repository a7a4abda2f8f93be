// Package memory_service implements tiered conversation memory: it compresses
// older history into LLM-generated summaries and key facts, and builds the
// model-facing message array from the compressed tiers plus the recent buffer.
package memory_service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/internal/store"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// MaybeCompress runs after every message append. When the live history
// reaches the threshold it compresses everything except the recent buffer
// into one summary plus extracted key facts, and splices the compressed
// slice out of the live history behind a single synthetic system message.
//
// Returns whether a compression happened. All failures are logged and
// swallowed: the conversation stays uncompressed this turn and is retried
// on the next append.
func (s *Service) MaybeCompress(ctx context.Context, agentCtx *conversation.AgentContext) bool {
	total := len(agentCtx.History)
	if total < s.threshold {
		return false
	}

	// After a prior compression the head of the live history is the summary
	// placeholder, not a raw message; it is never re-compressed.
	placeholders := 0
	if len(agentCtx.Memory.Summaries) > 0 {
		placeholders = 1
	}

	n := total - s.recentBuffer - placeholders
	if n <= 0 {
		return false
	}

	// A tool message at the boundary would lose the assistant message that
	// carries its tool_call_id; pull it into the compressed range with its
	// parent.
	for placeholders+n < total && agentCtx.History[placeholders+n].Role == conversation.RoleTool {
		n++
	}

	// Indices in the live history have diverged from durable order keys once
	// compression has occurred, so the original range is carried explicitly.
	slice := agentCtx.History[placeholders : placeholders+n]
	from := agentCtx.Memory.RecentBufferStart
	to := from + n - 1

	content, err := s.summarize(ctx, slice)
	if err != nil {
		s.log.Warn("Summarization failed, leaving history uncompressed",
			logger.StringField("session_id", agentCtx.SessionID),
			logger.ErrorField(err))
		return false
	}

	facts := s.extractFacts(ctx, slice)

	summary := conversation.ConversationSummary{
		Content:       content,
		MessageRange:  conversation.MessageRange{From: from, To: to},
		CreatedAt:     time.Now(),
		TokenEstimate: (len(content) + 3) / 4,
	}

	agentCtx.Memory.Summaries = append(agentCtx.Memory.Summaries, summary)
	agentCtx.Memory.KeyFacts = append(agentCtx.Memory.KeyFacts, facts...)

	// Replace the placeholder (if any) and the compressed slice with one
	// fresh synthetic system message.
	tail := agentCtx.History[placeholders+n:]
	spliced := make([]conversation.ChatMessage, 0, 1+len(tail))
	spliced = append(spliced, conversation.SummaryPlaceholder(summary))
	spliced = append(spliced, tail...)
	agentCtx.History = spliced
	agentCtx.Memory.RecentBufferStart = to + 1

	s.persistCompression(ctx, agentCtx.SessionID, summary, facts)

	s.log.Info("Compressed conversation history",
		logger.StringField("session_id", agentCtx.SessionID),
		logger.IntField("from", from),
		logger.IntField("to", to),
		logger.IntField("facts", len(facts)),
		logger.IntField("live_length", len(agentCtx.History)))

	return true
}

// persistCompression durably records the summary and facts and deletes the
// raw messages in the compressed range. Failures degrade durability only.
func (s *Service) persistCompression(ctx context.Context, sessionID string, summary conversation.ConversationSummary, facts []conversation.KeyFact) {
	if err := s.store.AppendSummary(ctx, store.SummaryRecord{
		SessionID:     sessionID,
		Content:       summary.Content,
		From:          summary.MessageRange.From,
		To:            summary.MessageRange.To,
		TokenEstimate: summary.TokenEstimate,
		CreatedAt:     summary.CreatedAt,
	}); err != nil {
		s.log.Warn("Failed to persist summary",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
	}

	for _, fact := range facts {
		if err := s.store.AppendKeyFact(ctx, store.KeyFactRecord{
			SessionID:           sessionID,
			Type:                fact.Type,
			Content:             fact.Content,
			RelatedPaperIndices: fact.RelatedPaperIndices,
			ExtractedAt:         fact.ExtractedAt,
		}); err != nil {
			s.log.Warn("Failed to persist key fact",
				logger.StringField("session_id", sessionID),
				logger.ErrorField(err))
		}
	}

	if err := s.store.DeleteMessageRange(ctx, sessionID, summary.MessageRange.From, summary.MessageRange.To); err != nil {
		s.log.Warn("Failed to delete compressed messages",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
	}
}

// summarize asks the LLM for a digest of the sliced messages.
func (s *Service) summarize(ctx context.Context, msgs []conversation.ChatMessage) (string, error) {
	resp, err := s.llm.Complete(ctx, &models.CompletionRequest{
		Messages: []conversation.ChatMessage{
			{Role: conversation.RoleSystem, Content: summarizationSystemPrompt},
			{Role: conversation.RoleUser, Content: renderTranscript(msgs)},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("summarization call: %w", err)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", fmt.Errorf("summarization returned empty content")
	}
	return content, nil
}

// extractFacts asks the LLM for typed key facts from the non-tool messages
// of the slice. Extraction failures produce no facts, never an error.
func (s *Service) extractFacts(ctx context.Context, msgs []conversation.ChatMessage) []conversation.KeyFact {
	var filtered []conversation.ChatMessage
	for _, msg := range msgs {
		if msg.Role != conversation.RoleTool {
			filtered = append(filtered, msg)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	resp, err := s.llm.Complete(ctx, &models.CompletionRequest{
		Messages: []conversation.ChatMessage{
			{Role: conversation.RoleSystem, Content: factExtractionSystemPrompt},
			{Role: conversation.RoleUser, Content: renderTranscript(filtered)},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		s.log.Warn("Key fact extraction failed", logger.ErrorField(err))
		return nil
	}

	facts, err := parseFacts(resp.Content)
	if err != nil {
		s.log.Warn("Failed to parse extracted facts",
			logger.ErrorField(err))
		return nil
	}
	return facts
}

// BuildCompressedContext constructs the LLM-facing message array: one system
// message carrying the prompt, rendered key facts, and the paper roster; one
// system message per summary, oldest first; then the recent buffer's worth
// of the current history verbatim.
func (s *Service) BuildCompressedContext(systemPrompt string, agentCtx *conversation.AgentContext) []conversation.ChatMessage {
	msgs := []conversation.ChatMessage{
		{Role: conversation.RoleSystem, Content: EnrichSystemPrompt(systemPrompt, agentCtx)},
	}

	for _, summary := range agentCtx.Memory.Summaries {
		msgs = append(msgs, conversation.SummaryPlaceholder(summary))
	}

	history := agentCtx.History
	start := len(history) - s.recentBuffer
	if start < 0 {
		start = 0
	}
	// Never open the window on a tool message whose parent assistant call
	// fell outside it.
	for start < len(history) && history[start].Role == conversation.RoleTool {
		start++
	}
	// Skip the in-history placeholder; the summaries above already cover it
	for _, msg := range history[start:] {
		if msg.Role == conversation.RoleSystem && strings.HasPrefix(msg.Content, "[Conversation summary") {
			continue
		}
		msgs = append(msgs, msg)
	}

	return msgs
}

// EnrichSystemPrompt appends the rendered key facts and paper roster to the
// base system prompt. It is shared with the loop's pre-compression context.
func EnrichSystemPrompt(systemPrompt string, agentCtx *conversation.AgentContext) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if len(agentCtx.Memory.KeyFacts) > 0 {
		b.WriteString("\n\nKnown facts from this session:\n")
		for _, fact := range agentCtx.Memory.KeyFacts {
			b.WriteString(fmt.Sprintf("- [%s] %s\n", fact.Type, fact.Content))
		}
	}

	if len(agentCtx.Papers) > 0 {
		b.WriteString("\nPapers found so far:\n")
		for i, paper := range agentCtx.Papers {
			b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i, paper.Title, paper.ID))
		}
	}

	return b.String()
}
