package memory_service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/internal/store"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// fakeLLM answers summarization and extraction calls with canned output.
type fakeLLM struct {
	summaryText   string
	factsOutput   string
	failSummarize bool
	calls         int
}

func (f *fakeLLM) Complete(_ context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	f.calls++
	system := req.Messages[0].Content
	if strings.Contains(system, "summarizing") {
		if f.failSummarize {
			return nil, errors.New("model overloaded")
		}
		return &models.CompletionResponse{Content: f.summaryText}, nil
	}
	return &models.CompletionResponse{Content: f.factsOutput}, nil
}

func (f *fakeLLM) Name() string { return "fake-model" }

func newTestService(t *testing.T, llm models.ChatClient) (*Service, *store.MemStore) {
	t.Helper()
	memStore := store.NewMemStore()
	svc := New(Config{
		LLM:    llm,
		Store:  memStore,
		Logger: logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Service: "test"}),
	})
	return svc, memStore
}

func seedSession(t *testing.T, memStore *store.MemStore, sessionID string) *conversation.AgentContext {
	t.Helper()
	agentCtx := conversation.NewAgentContext(sessionID, "user-1")
	require.NoError(t, memStore.CreateSession(context.Background(), store.SessionRecord{
		ID:             sessionID,
		UserID:         "user-1",
		CreatedAt:      agentCtx.Metadata.CreatedAt,
		LastActivityAt: agentCtx.Metadata.LastActivityAt,
	}))
	return agentCtx
}

func appendAndPersist(t *testing.T, memStore *store.MemStore, agentCtx *conversation.AgentContext, msg conversation.ChatMessage) {
	t.Helper()
	idx := agentCtx.Append(msg)
	require.NoError(t, memStore.AppendMessage(context.Background(), store.MessageRecord{
		SessionID: agentCtx.SessionID,
		Index:     idx,
		Role:      msg.Role,
		Content:   msg.Content,
	}))
}

func TestCompressionScenario(t *testing.T) {
	llm := &fakeLLM{summaryText: "The user discussed many short topics.", factsOutput: "[]"}
	svc, memStore := newTestService(t, llm)
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")

	compressedAt := -1
	for i := 0; i < 30; i++ {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		if svc.MaybeCompress(ctx, agentCtx) && compressedAt == -1 {
			compressedAt = i
		}
	}

	// Compression fires when live history first reaches the threshold
	assert.Equal(t, 24, compressedAt)

	require.Len(t, agentCtx.Memory.Summaries, 1)
	summary := agentCtx.Memory.Summaries[0]
	assert.Equal(t, 0, summary.MessageRange.From)
	assert.Equal(t, 14, summary.MessageRange.To)
	assert.Equal(t, 15, agentCtx.Memory.RecentBufferStart)

	// Live history right after compression: 1 placeholder + 10 verbatim = 11
	// plus the 5 appends that followed
	assert.Len(t, agentCtx.History, 16)
	assert.Equal(t, conversation.RoleSystem, agentCtx.History[0].Role)
	assert.Contains(t, agentCtx.History[0].Content, "0-14")
	assert.Equal(t, "message 15", agentCtx.History[1].Content)

	// Compressed raw messages are durably gone
	msgs, err := memStore.ListMessages(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 15, msgs[0].Index)

	// The summary is durably recorded
	sums, err := memStore.ListSummaries(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 14, sums[0].To)
}

func TestCompressionIdempotent(t *testing.T) {
	llm := &fakeLLM{summaryText: "digest", factsOutput: "[]"}
	svc, memStore := newTestService(t, llm)
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")

	for i := 0; i < 25; i++ {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleUser,
			Content: "msg",
		})
	}

	require.True(t, svc.MaybeCompress(ctx, agentCtx))
	historyLen := len(agentCtx.History)
	summaries := len(agentCtx.Memory.Summaries)

	// No new messages, no observable change
	assert.False(t, svc.MaybeCompress(ctx, agentCtx))
	assert.Len(t, agentCtx.History, historyLen)
	assert.Len(t, agentCtx.Memory.Summaries, summaries)
}

func TestRangeInvariantAcrossCompressions(t *testing.T) {
	llm := &fakeLLM{summaryText: "digest", factsOutput: "[]"}
	svc, memStore := newTestService(t, llm)
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")

	for i := 0; i < 60; i++ {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleUser,
			Content: "msg",
		})
		svc.MaybeCompress(ctx, agentCtx)
	}

	summaries := agentCtx.Memory.Summaries
	require.GreaterOrEqual(t, len(summaries), 2)
	for i := 0; i+1 < len(summaries); i++ {
		assert.Equal(t, summaries[i].MessageRange.To+1, summaries[i+1].MessageRange.From,
			"summaries must be contiguous")
	}
	last := summaries[len(summaries)-1]
	assert.Equal(t, last.MessageRange.To+1, agentCtx.Memory.RecentBufferStart)
}

func TestSummarizationFailureLeavesStateUntouched(t *testing.T) {
	llm := &fakeLLM{failSummarize: true}
	svc, memStore := newTestService(t, llm)
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")

	for i := 0; i < 25; i++ {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleUser,
			Content: "msg",
		})
	}

	assert.False(t, svc.MaybeCompress(ctx, agentCtx))
	assert.Len(t, agentCtx.History, 25)
	assert.Empty(t, agentCtx.Memory.Summaries)
	assert.Equal(t, 0, agentCtx.Memory.RecentBufferStart)
}

func TestFactExtractionAndCompression(t *testing.T) {
	llm := &fakeLLM{
		summaryText: "digest",
		factsOutput: "```json\n[{\"type\":\"decision\",\"content\":\"focus on attention mechanisms\"},{\"type\":\"bogus\",\"content\":\"dropped\"},{\"content\":\"missing type\"}]\n```",
	}
	svc, memStore := newTestService(t, llm)
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")

	for i := 0; i < 25; i++ {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleUser,
			Content: "msg",
		})
	}

	require.True(t, svc.MaybeCompress(ctx, agentCtx))
	require.Len(t, agentCtx.Memory.KeyFacts, 1)
	assert.Equal(t, conversation.FactDecision, agentCtx.Memory.KeyFacts[0].Type)
	assert.Equal(t, "focus on attention mechanisms", agentCtx.Memory.KeyFacts[0].Content)
}

func TestParseFactsRecovery(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    int
		wantErr bool
	}{
		{
			name:   "plain array",
			output: `[{"type":"entity","content":"BERT"}]`,
			want:   1,
		},
		{
			name:   "fenced array",
			output: "```json\n[{\"type\":\"entity\",\"content\":\"BERT\"}]\n```",
			want:   1,
		},
		{
			name:   "array wrapped in prose",
			output: `Here are the facts: [{"type":"entity","content":"BERT"}] as requested.`,
			want:   1,
		},
		{
			name:   "empty array",
			output: "[]",
			want:   0,
		},
		{
			name:    "no array at all",
			output:  "I could not find any facts.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := parseFacts(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, facts, tt.want)
		})
	}
}

func TestBuildCompressedContext(t *testing.T) {
	llm := &fakeLLM{summaryText: "digest of early conversation", factsOutput: `[{"type":"user_preference","content":"prefers survey papers"}]`}
	svc, memStore := newTestService(t, llm)
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")
	agentCtx.AddPaper(conversation.Paper{ID: "2401.00001", Title: "Attention Survey"})

	for i := 0; i < 25; i++ {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
	}
	require.True(t, svc.MaybeCompress(ctx, agentCtx))

	msgs := svc.BuildCompressedContext("You are a research assistant.", agentCtx)

	// system prompt + 1 summary + 10 recent messages
	require.Len(t, msgs, 12)

	head := msgs[0]
	assert.Equal(t, conversation.RoleSystem, head.Role)
	assert.Contains(t, head.Content, "You are a research assistant.")
	assert.Contains(t, head.Content, "prefers survey papers")
	assert.Contains(t, head.Content, "Attention Survey")

	assert.Contains(t, msgs[1].Content, "digest of early conversation")
	assert.Equal(t, "message 15", msgs[2].Content)
	assert.Equal(t, "message 24", msgs[11].Content)
}

func TestConfiguredThresholdAndBuffer(t *testing.T) {
	llm := &fakeLLM{summaryText: "short digest", factsOutput: "[]"}
	memStore := store.NewMemStore()
	svc := New(Config{
		LLM:                  llm,
		Store:                memStore,
		Logger:               logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Service: "test"}),
		CompressionThreshold: 6,
		RecentBufferSize:     2,
	})
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")

	for i := 0; i < 5; i++ {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		assert.False(t, svc.MaybeCompress(ctx, agentCtx))
	}
	appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
		Role:    conversation.RoleUser,
		Content: "message 5",
	})

	require.True(t, svc.MaybeCompress(ctx, agentCtx))
	require.Len(t, agentCtx.Memory.Summaries, 1)
	assert.Equal(t, conversation.MessageRange{From: 0, To: 3}, agentCtx.Memory.Summaries[0].MessageRange)
	assert.Equal(t, 4, agentCtx.Memory.RecentBufferStart)
	require.Len(t, agentCtx.History, 3)
}

func TestCompressionKeepsToolResultsWithTheirCall(t *testing.T) {
	llm := &fakeLLM{summaryText: "digest", factsOutput: "[]"}
	memStore := store.NewMemStore()
	svc := New(Config{
		LLM:                  llm,
		Store:                memStore,
		Logger:               logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Service: "test"}),
		CompressionThreshold: 8,
		RecentBufferSize:     4,
	})
	ctx := context.Background()
	agentCtx := seedSession(t, memStore, "session-1")

	roles := []conversation.Role{
		conversation.RoleUser,      // 0
		conversation.RoleAssistant, // 1
		conversation.RoleUser,      // 2
		conversation.RoleAssistant, // 3: carries the tool call
		conversation.RoleTool,      // 4: would open the recent buffer
		conversation.RoleUser,      // 5
		conversation.RoleAssistant, // 6
		conversation.RoleUser,      // 7
	}
	for i, role := range roles {
		appendAndPersist(t, memStore, agentCtx, conversation.ChatMessage{
			Role:    role,
			Content: fmt.Sprintf("message %d", i),
		})
	}

	require.True(t, svc.MaybeCompress(ctx, agentCtx))

	// The tool result at index 4 is pulled into the compressed range with
	// its parent instead of surviving orphaned.
	require.Len(t, agentCtx.Memory.Summaries, 1)
	assert.Equal(t, conversation.MessageRange{From: 0, To: 4}, agentCtx.Memory.Summaries[0].MessageRange)
	assert.Equal(t, 5, agentCtx.Memory.RecentBufferStart)
	require.Len(t, agentCtx.History, 4)
	assert.NotEqual(t, conversation.RoleTool, agentCtx.History[1].Role)
}

func TestBuildCompressedContextSkipsOrphanedToolWindow(t *testing.T) {
	llm := &fakeLLM{summaryText: "digest", factsOutput: "[]"}
	memStore := store.NewMemStore()
	svc := New(Config{
		LLM:              llm,
		Store:            memStore,
		Logger:           logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Service: "test"}),
		RecentBufferSize: 4,
	})
	agentCtx := seedSession(t, memStore, "session-1")
	agentCtx.Memory.Summaries = []conversation.ConversationSummary{{
		Content:      "earlier conversation",
		MessageRange: conversation.MessageRange{From: 0, To: 9},
	}}
	agentCtx.History = []conversation.ChatMessage{
		{Role: conversation.RoleUser, Content: "question"},
		{Role: conversation.RoleAssistant, Content: "calling a tool", ToolCalls: []conversation.ToolCall{{ID: "call_1", Name: "search_papers"}}},
		{Role: conversation.RoleTool, Content: "result", ToolCallID: "call_1"},
		{Role: conversation.RoleUser, Content: "thanks"},
		{Role: conversation.RoleAssistant, Content: "done"},
		{Role: conversation.RoleUser, Content: "next question"},
	}

	msgs := svc.BuildCompressedContext("You are a research assistant.", agentCtx)

	// system + summary; the window would open on the tool result, so it
	// advances past it
	require.Len(t, msgs, 5)
	assert.Equal(t, "thanks", msgs[2].Content)
	for _, msg := range msgs {
		assert.NotEqual(t, conversation.RoleTool, msg.Role)
	}
}
