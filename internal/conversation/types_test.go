package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsMonotonicIndices(t *testing.T) {
	ctx := NewAgentContext("session-1", "user-1")

	idx0 := ctx.Append(ChatMessage{Role: RoleUser, Content: "first"})
	idx1 := ctx.Append(ChatMessage{Role: RoleAssistant, Content: "second"})

	assert.Equal(t, 0, idx0)
	assert.Equal(t, 1, idx1)
	assert.Equal(t, 2, ctx.NextIndex())
	assert.Len(t, ctx.History, 2)
}

func TestIndicesSurviveHistorySplice(t *testing.T) {
	ctx := NewAgentContext("session-1", "user-1")
	for i := 0; i < 5; i++ {
		ctx.Append(ChatMessage{Role: RoleUser, Content: "msg"})
	}

	// Removing messages from live history must not recycle order keys
	ctx.History = ctx.History[3:]
	idx := ctx.Append(ChatMessage{Role: RoleUser, Content: "after splice"})
	assert.Equal(t, 5, idx)
}

func TestAddPaperDeduplicates(t *testing.T) {
	ctx := NewAgentContext("session-1", "user-1")

	idx, added := ctx.AddPaper(Paper{ID: "2401.00001", Title: "First"})
	require.True(t, added)
	assert.Equal(t, 0, idx)

	idx, added = ctx.AddPaper(Paper{ID: "2401.00002", Title: "Second"})
	require.True(t, added)
	assert.Equal(t, 1, idx)

	// Same arXiv ID returns the existing index
	idx, added = ctx.AddPaper(Paper{ID: "2401.00001", Title: "Duplicate"})
	assert.False(t, added)
	assert.Equal(t, 0, idx)
	assert.Len(t, ctx.Papers, 2)
	assert.Equal(t, "First", ctx.Papers[0].Title)
}

func TestPaperAtBounds(t *testing.T) {
	ctx := NewAgentContext("session-1", "user-1")
	ctx.AddPaper(Paper{ID: "2401.00001"})

	assert.NotNil(t, ctx.PaperAt(0))
	assert.Nil(t, ctx.PaperAt(-1))
	assert.Nil(t, ctx.PaperAt(1))
}

func TestExpired(t *testing.T) {
	ctx := NewAgentContext("session-1", "user-1")
	assert.False(t, ctx.Expired(30*time.Minute))

	ctx.Metadata.LastActivityAt = time.Now().Add(-31 * time.Minute)
	assert.True(t, ctx.Expired(30*time.Minute))

	ctx.Touch()
	assert.False(t, ctx.Expired(30*time.Minute))
}

func TestValidFactType(t *testing.T) {
	assert.True(t, ValidFactType(FactDecision))
	assert.True(t, ValidFactType(FactPaperConclusion))
	assert.False(t, ValidFactType(FactType("opinion")))
	assert.False(t, ValidFactType(FactType("")))
}
