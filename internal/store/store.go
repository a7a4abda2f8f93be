// Package store defines the durable session store interface and its
// implementations: a Postgres-backed store for production and an in-memory
// store for tests and storeless deployments.
//
// All write paths in the engine treat the store as best-effort: a failed
// write degrades durability, never interactivity. Cold-path reads are the
// exception, a failed read fails the whole session lookup.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

// ErrNotFound is returned when a session does not exist or has ended.
var ErrNotFound = errors.New("session not found")

// SessionRecord is the durable row for a session.
type SessionRecord struct {
	ID              string
	UserID          string
	CreatedAt       time.Time
	LastActivityAt  time.Time
	EndedAt         *time.Time
	TotalIterations int
	SearchCount     int
	AnalysisCount   int
}

// MessageRecord is a persisted chat message keyed by its durable order key.
// Index is assigned once at append time and never reused, even after the
// message is compressed out of the live history.
type MessageRecord struct {
	SessionID  string
	Index      int
	Role       conversation.Role
	Content    string
	ToolCalls  []conversation.ToolCall
	ToolCallID string
	CreatedAt  time.Time
}

// SummaryRecord is a persisted conversation summary covering [From, To] of
// the original message index space.
type SummaryRecord struct {
	SessionID     string
	Content       string
	From          int
	To            int
	TokenEstimate int
	CreatedAt     time.Time
}

// KeyFactRecord is a persisted key fact.
type KeyFactRecord struct {
	SessionID           string
	Type                conversation.FactType
	Content             string
	RelatedPaperIndices []int
	ExtractedAt         time.Time
}

// PaperRecord links a paper to a session, preserving roster order.
type PaperRecord struct {
	SessionID string
	Position  int
	Paper     conversation.Paper
}

// Store is durable CRUD for sessions, messages, summaries, key facts, and
// session-to-paper links.
type Store interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, rec SessionRecord) error

	// GetSession returns the session row, or ErrNotFound if absent or ended.
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)

	// UpdateSessionActivity refreshes the activity timestamp and counters.
	UpdateSessionActivity(ctx context.Context, sessionID string, at time.Time, iterations, searches, analyses int) error

	// EndSession marks the session ended.
	EndSession(ctx context.Context, sessionID string) error

	// ExpireSessionsBefore bulk-ends sessions whose last activity is older
	// than cutoff and returns how many were ended.
	ExpireSessionsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// ListSessions returns all live sessions for a user, newest first.
	ListSessions(ctx context.Context, userID string) ([]SessionRecord, error)

	// AppendMessage persists a message under its durable order key.
	AppendMessage(ctx context.Context, rec MessageRecord) error

	// ListMessages returns a session's messages ordered by their order key.
	ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error)

	// DeleteMessageRange removes raw messages with order keys in [from, to].
	DeleteMessageRange(ctx context.Context, sessionID string, from, to int) error

	// AppendSummary persists a conversation summary.
	AppendSummary(ctx context.Context, rec SummaryRecord) error

	// ListSummaries returns a session's summaries ordered by range.
	ListSummaries(ctx context.Context, sessionID string) ([]SummaryRecord, error)

	// AppendKeyFact persists a key fact.
	AppendKeyFact(ctx context.Context, rec KeyFactRecord) error

	// ListKeyFacts returns a session's key facts in extraction order.
	ListKeyFacts(ctx context.Context, sessionID string) ([]KeyFactRecord, error)

	// UpsertPaper links a paper to a session, replacing any previous record
	// at the same roster position.
	UpsertPaper(ctx context.Context, rec PaperRecord) error

	// ListPapers returns a session's papers in roster order.
	ListPapers(ctx context.Context, sessionID string) ([]conversation.Paper, error)
}
