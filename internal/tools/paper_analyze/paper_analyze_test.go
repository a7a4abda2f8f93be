package paper_analyze

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

type fakeLLM struct {
	response string
	err      error
	requests []*models.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.CompletionResponse{Content: f.response}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func newTestTool(t *testing.T, llm models.ChatClient) *Tool {
	t.Helper()
	return New(Config{
		LLM:    llm,
		Logger: logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Service: "test"}),
	})
}

func rosterWithPaper(pdfURL string) *conversation.AgentContext {
	agentCtx := conversation.NewAgentContext("session-1", "user-1")
	agentCtx.AddPaper(conversation.Paper{
		ID:       "1706.03762",
		Title:    "Attention Is All You Need",
		Authors:  []string{"Ashish Vaswani"},
		Abstract: "The dominant sequence transduction models are based on recurrent networks.",
		PDFURL:   pdfURL,
	})
	return agentCtx
}

func TestAnalyzeFallsBackToAbstract(t *testing.T) {
	// serves something that is not a PDF, so extraction fails
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not a pdf</html>"))
	}))
	defer server.Close()

	llm := &fakeLLM{response: "The paper introduces the Transformer."}
	tool := newTestTool(t, llm)
	agentCtx := rosterWithPaper(server.URL + "/paper.pdf")

	execution, err := tool.Execute(context.Background(), json.RawMessage(`{"paper_index":0}`), agentCtx)
	require.NoError(t, err)

	assert.True(t, execution.Result.Success)
	assert.Equal(t, 1, execution.Analyses)

	data := execution.Result.Data.(map[string]any)
	assert.Equal(t, "abstract", data["source"])
	assert.Equal(t, "The paper introduces the Transformer.", data["analysis"])

	// the model saw the abstract, not the bogus download
	require.Len(t, llm.requests, 1)
	prompt := llm.requests[0].Messages[1].Content
	assert.Contains(t, prompt, "sequence transduction")
	assert.NotContains(t, prompt, "not a pdf")
}

func TestAnalyzeIncludesQuestion(t *testing.T) {
	llm := &fakeLLM{response: "analysis"}
	tool := newTestTool(t, llm)
	agentCtx := rosterWithPaper("")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"paper_index":0,"question":"What is multi-head attention?"}`), agentCtx)
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	assert.Contains(t, llm.requests[0].Messages[1].Content, "What is multi-head attention?")
}

func TestAnalyzeUnknownIndex(t *testing.T) {
	tool := newTestTool(t, &fakeLLM{response: "x"})
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"paper_index":3}`), agentCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no paper at index 3")
}

func TestAnalyzeModelFailure(t *testing.T) {
	llm := &fakeLLM{err: assert.AnError}
	tool := newTestTool(t, llm)
	agentCtx := rosterWithPaper("")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"paper_index":0}`), agentCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
