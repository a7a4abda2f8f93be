package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairToolCallJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "stray quote and equals sign",
			input: `{name":"search_papers, "parameters"={"query":"x"}}`,
			want:  `{"name":"search_papers", "parameters":{"query":"x"}}`,
		},
		{
			name:  "already valid",
			input: `{"name":"annotate_paper","parameters":{"paper_index":0,"note":"read later"}}`,
			want:  `{"name":"annotate_paper","parameters":{"paper_index":0,"note":"read later"}}`,
		},
		{
			name:  "escaped quotes",
			input: `{\"name\":\"search_papers\",\"parameters\":{\"query\":\"bert\"}}`,
			want:  `{"name":"search_papers","parameters":{"query":"bert"}}`,
		},
		{
			name:  "repeated colons",
			input: `{"name":: "search_papers", "parameters": {"query": "x"}}`,
			want:  `{"name": "search_papers", "parameters": {"query": "x"}}`,
		},
		{
			name:  "bare keys",
			input: `{name: "search_papers", parameters: {query: "x"}}`,
			want:  `{"name": "search_papers", "parameters": {"query": "x"}}`,
		},
		{
			name:  "equals after quoted key",
			input: `{"name" = "search_papers", "parameters" = {"query": "x"}}`,
			want:  `{"name": "search_papers", "parameters": {"query": "x"}}`,
		},
		{
			name:  "missing comma before object brace",
			input: `{"name": "analyze_paper", "parameters": {"paper_index": 1} {"extra": true}}`,
			want:  `{"name": "analyze_paper", "parameters": {"paper_index": 1}, {"extra": true}}`,
		},
		{
			name:  "code fence stripped",
			input: "```json\n{\"name\": \"search_papers\", \"parameters\": {\"query\": \"x\"}}\n```",
			want:  `{"name": "search_papers", "parameters": {"query": "x"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairToolCallJSON(tt.input))
		})
	}
}

func TestRepairedPayloadParses(t *testing.T) {
	repaired := repairToolCallJSON(`{name":"search_papers, "parameters"={"query":"x"}}`)

	var call textualToolCall
	require.NoError(t, json.Unmarshal([]byte(repaired), &call))
	assert.Equal(t, "search_papers", call.Name)

	var params map[string]string
	require.NoError(t, json.Unmarshal(call.Parameters, &params))
	assert.Equal(t, "x", params["query"])
}

func TestParseTextualToolCall(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantTool string
		wantOK   bool
	}{
		{
			name:     "well formed",
			content:  `{"name":"search_papers","parameters":{"query":"transformers"}}`,
			wantTool: "search_papers",
			wantOK:   true,
		},
		{
			name:     "malformed but repairable",
			content:  `{name":"search_papers, "parameters"={"query":"x"}}`,
			wantTool: "search_papers",
			wantOK:   true,
		},
		{
			name:     "fenced",
			content:  "```json\n{\"name\":\"annotate_paper\",\"parameters\":{\"paper_index\":0,\"note\":\"n\"}}\n```",
			wantTool: "annotate_paper",
			wantOK:   true,
		},
		{
			name:    "plain prose",
			content: "Here are the three papers I found on attention mechanisms.",
			wantOK:  false,
		},
		{
			name:    "json without a name",
			content: `{"answer": 42}`,
			wantOK:  false,
		},
		{
			name:    "empty",
			content: "",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := parseTextualToolCall(tt.content)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.NotNil(t, call)
				assert.Equal(t, tt.wantTool, call.Name)
			}
		})
	}
}
