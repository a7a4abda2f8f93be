package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

func newTestSession(t *testing.T, s *MemStore, id, userID string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.CreateSession(context.Background(), SessionRecord{
		ID:             id,
		UserID:         userID,
		CreatedAt:      now,
		LastActivityAt: now,
	}))
}

func TestSessionLifecycle(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	newTestSession(t, s, "session-1", "user-1")

	rec, err := s.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.UserID)

	require.NoError(t, s.EndSession(ctx, "session-1"))

	_, err = s.GetSession(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSessionMissing(t *testing.T) {
	s := NewMemStore()
	_, err := s.GetSession(context.Background(), "session-nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireSessionsBefore(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	newTestSession(t, s, "session-old", "user-1")
	newTestSession(t, s, "session-new", "user-1")

	require.NoError(t, s.UpdateSessionActivity(ctx, "session-old", time.Now().Add(-time.Hour), 0, 0, 0))

	count, err := s.ExpireSessionsBefore(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.GetSession(ctx, "session-old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSession(ctx, "session-new")
	assert.NoError(t, err)
}

func TestMessagesOrderedAndRangeDeletable(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	newTestSession(t, s, "session-1", "user-1")

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendMessage(ctx, MessageRecord{
			SessionID: "session-1",
			Index:     i,
			Role:      conversation.RoleUser,
			Content:   "msg",
		}))
	}

	require.NoError(t, s.DeleteMessageRange(ctx, "session-1", 0, 2))

	msgs, err := s.ListMessages(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 3, msgs[0].Index)
	assert.Equal(t, 4, msgs[1].Index)
}

func TestSummariesOrderedByRange(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	newTestSession(t, s, "session-1", "user-1")

	require.NoError(t, s.AppendSummary(ctx, SummaryRecord{SessionID: "session-1", From: 15, To: 24, Content: "later"}))
	require.NoError(t, s.AppendSummary(ctx, SummaryRecord{SessionID: "session-1", From: 0, To: 14, Content: "earlier"}))

	sums, err := s.ListSummaries(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, 0, sums[0].From)
	assert.Equal(t, 15, sums[1].From)
}

func TestUpsertPaperReplacesPosition(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	newTestSession(t, s, "session-1", "user-1")

	require.NoError(t, s.UpsertPaper(ctx, PaperRecord{
		SessionID: "session-1",
		Position:  0,
		Paper:     conversation.Paper{ID: "2401.00001", Title: "Original"},
	}))
	require.NoError(t, s.UpsertPaper(ctx, PaperRecord{
		SessionID: "session-1",
		Position:  0,
		Paper:     conversation.Paper{ID: "2401.00001", Title: "Annotated", Notes: []string{"note"}},
	}))

	papers, err := s.ListPapers(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "Annotated", papers[0].Title)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	newTestSession(t, s, "session-a", "user-1")
	newTestSession(t, s, "session-b", "user-1")
	newTestSession(t, s, "session-c", "user-2")

	require.NoError(t, s.UpdateSessionActivity(ctx, "session-a", time.Now().Add(time.Minute), 0, 0, 0))

	sessions, err := s.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "session-a", sessions[0].ID)
}
