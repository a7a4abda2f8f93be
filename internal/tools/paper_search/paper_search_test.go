package paper_search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All
  You Need</title>
    <summary>The dominant sequence transduction models are based on complex
  recurrent or convolutional neural networks.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2005.14165v4</id>
    <title>Language Models are Few-Shot Learners</title>
    <summary>We show that scaling up language models greatly improves performance.</summary>
    <published>2020-05-28T17:29:03Z</published>
    <author><name>Tom Brown</name></author>
  </entry>
</feed>`

func newSearchServer(t *testing.T, wantQuery string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		if wantQuery != "" {
			assert.Equal(t, wantQuery, r.URL.Query().Get("search_query"))
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
}

func TestSearchParsesFeed(t *testing.T) {
	server := newSearchServer(t, "all:attention")
	defer server.Close()

	tool := New(Config{BaseURL: server.URL})
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	execution, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"attention"}`), agentCtx)
	require.NoError(t, err)

	assert.True(t, execution.Result.Success)
	assert.Equal(t, 1, execution.Searches)
	require.Len(t, execution.Papers, 2)

	first := execution.Papers[0]
	assert.Equal(t, "1706.03762", first.ID)
	assert.Equal(t, "Attention Is All You Need", first.Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, first.Authors)
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", first.PDFURL)
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", first.URL)
	assert.Equal(t, 2017, first.Published.Year())

	// entry without a pdf link gets the derived URL
	assert.Equal(t, "https://arxiv.org/pdf/2005.14165.pdf", execution.Papers[1].PDFURL)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	tool := New(Config{})
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"  "}`), agentCtx)
	assert.Error(t, err)
}

func TestSearchClampsMaxResults(t *testing.T) {
	var gotMax string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("max_results")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	tool := New(Config{BaseURL: server.URL})
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"x","max_results":500}`), agentCtx)
	require.NoError(t, err)
	assert.Equal(t, "25", gotMax)

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"query":"x"}`), agentCtx)
	require.NoError(t, err)
	assert.Equal(t, "5", gotMax)
}

func TestSearchConfiguredResultsCap(t *testing.T) {
	var gotMax string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("max_results")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	tool := New(Config{BaseURL: server.URL, MaxResultsCap: 3})
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"x","max_results":500}`), agentCtx)
	require.NoError(t, err)
	assert.Equal(t, "3", gotMax)
}

func TestSearchReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	tool := New(Config{BaseURL: server.URL})
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"x"}`), agentCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arxiv API error")
}

func TestSearchReusesRosterIndexForKnownPapers(t *testing.T) {
	server := newSearchServer(t, "")
	defer server.Close()

	tool := New(Config{BaseURL: server.URL})
	agentCtx := conversation.NewAgentContext("session-1", "user-1")
	agentCtx.AddPaper(conversation.Paper{ID: "1706.03762", Title: "Attention Is All You Need"})

	execution, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"attention"}`), agentCtx)
	require.NoError(t, err)

	data := execution.Result.Data.(map[string]any)
	found := data["papers"].([]foundPaper)
	require.Len(t, found, 2)
	assert.Equal(t, 0, found[0].Index, "known paper keeps its roster index")
	assert.Equal(t, 1, found[1].Index)
}

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://arxiv.org/abs/1706.03762v7", "1706.03762"},
		{"http://arxiv.org/abs/2005.14165v4", "2005.14165"},
		{"https://arxiv.org/pdf/2401.00001.pdf", "2401.00001"},
		{"http://arxiv.org/abs/cond-mat/0207270v1", "cond-mat/0207270"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractIdentifier(tt.input), tt.input)
	}
}
