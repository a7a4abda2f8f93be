package agents

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Service: "test"}))
}

func strictStub() *stubTool {
	return &stubTool{
		definition: models.ToolDefinition{
			Name:        "annotate_paper",
			Description: "Attach a note to a paper",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"paper_index": map[string]any{"type": "integer", "minimum": 0},
					"note":        map[string]any{"type": "string"},
				},
				"required": []string{"paper_index", "note"},
			},
		},
	}
}

func TestRegistryValidatesArguments(t *testing.T) {
	r := newTestRegistry(t)
	tool := strictStub()
	require.NoError(t, r.Register(tool))
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	tests := []struct {
		name        string
		args        string
		wantSuccess bool
	}{
		{
			name:        "valid",
			args:        `{"paper_index": 0, "note": "read later"}`,
			wantSuccess: true,
		},
		{
			name:        "missing required field",
			args:        `{"paper_index": 0}`,
			wantSuccess: false,
		},
		{
			name:        "wrong type",
			args:        `{"paper_index": "zero", "note": "n"}`,
			wantSuccess: false,
		},
		{
			name:        "negative index",
			args:        `{"paper_index": -1, "note": "n"}`,
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(tool.gotArgs)
			execution := r.Execute(context.Background(), "annotate_paper", json.RawMessage(tt.args), agentCtx)
			assert.Equal(t, tt.wantSuccess, execution.Result.Success)
			if tt.wantSuccess {
				assert.Len(t, tool.gotArgs, before+1)
			} else {
				assert.Len(t, tool.gotArgs, before, "handler must not run on invalid arguments")
				assert.NotEmpty(t, execution.Result.Error)
			}
		})
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	execution := r.Execute(context.Background(), "launch_rocket", json.RawMessage(`{}`), agentCtx)

	assert.False(t, execution.Result.Success)
	assert.Contains(t, execution.Result.Error, "unknown tool")
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(strictStub()))
	assert.Error(t, r.Register(strictStub()))
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(strictStub()))
	require.NoError(t, r.Register(searchStub()))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "annotate_paper", defs[0].Name)
	assert.Equal(t, "search_papers", defs[1].Name)
}

func TestRegistryEmptyArgumentsDefaultToObject(t *testing.T) {
	r := newTestRegistry(t)
	tool := searchStub()
	require.NoError(t, r.Register(tool))
	agentCtx := conversation.NewAgentContext("session-1", "user-1")

	execution := r.Execute(context.Background(), "search_papers", nil, agentCtx)

	assert.True(t, execution.Result.Success)
	require.Len(t, tool.gotArgs, 1)
	assert.Equal(t, "{}", tool.gotArgs[0])
}
