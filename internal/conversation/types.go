// Package conversation defines the shared data model for a research session:
// chat messages with tool calls, accumulated papers, tiered memory state
// (summaries and key facts), and the AgentContext that binds them together.
package conversation

import (
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-issued request to invoke a named tool with JSON arguments.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is a single entry in a conversation history.
// Assistant messages may carry tool calls; tool messages must carry the
// ToolCallID they answer.
type ChatMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Paper is a research paper accumulated during a session by tool calls.
// Papers are deduplicated by ID (the arXiv identifier).
type Paper struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	Abstract  string    `json:"abstract"`
	URL       string    `json:"url"`
	PDFURL    string    `json:"pdf_url,omitempty"`
	Published time.Time `json:"published,omitempty"`
	Notes     []string  `json:"notes,omitempty"`
}

// MessageRange is a closed interval [From, To] of durable message order keys.
type MessageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ConversationSummary is an LLM-generated digest of a contiguous range of
// the original message index space. Summaries are produced in increasing,
// non-overlapping, contiguous order.
type ConversationSummary struct {
	Content       string       `json:"content"`
	MessageRange  MessageRange `json:"message_range"`
	CreatedAt     time.Time    `json:"created_at"`
	TokenEstimate int          `json:"token_estimate"`
}

// FactType classifies an extracted key fact.
type FactType string

const (
	FactPaperConclusion   FactType = "paper_conclusion"
	FactUserPreference    FactType = "user_preference"
	FactResearchDirection FactType = "research_direction"
	FactDecision          FactType = "decision"
	FactEntity            FactType = "entity"
)

// ValidFactType reports whether t is one of the known fact types.
func ValidFactType(t FactType) bool {
	switch t {
	case FactPaperConclusion, FactUserPreference, FactResearchDirection, FactDecision, FactEntity:
		return true
	}
	return false
}

// KeyFact is a durable piece of knowledge extracted from compressed history.
// Facts are append-only and accumulate for the life of the session.
type KeyFact struct {
	Type                FactType  `json:"type"`
	Content             string    `json:"content"`
	RelatedPaperIndices []int     `json:"related_paper_indices,omitempty"`
	ExtractedAt         time.Time `json:"extracted_at"`
}

// Metadata holds per-session counters and timestamps.
// LastActivityAt is the TTL clock and is refreshed on every mutation.
type Metadata struct {
	CreatedAt       time.Time `json:"created_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	TotalIterations int       `json:"total_iterations"`
	SearchCount     int       `json:"search_count"`
	AnalysisCount   int       `json:"analysis_count"`
}

// MemoryState holds the compressed tiers of a session's memory.
// RecentBufferStart is the original index of the first message not yet
// covered by a summary.
type MemoryState struct {
	Summaries         []ConversationSummary `json:"summaries"`
	KeyFacts          []KeyFact             `json:"key_facts"`
	RecentBufferStart int                   `json:"recent_buffer_start"`
}

// AgentContext is the unit of conversation state, one per session.
// The session manager exclusively owns the in-memory instance; the agent
// loop and tool handlers receive it by reference under the per-session lock.
type AgentContext struct {
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id"`
	Papers    []Paper       `json:"papers"`
	History   []ChatMessage `json:"history"`
	Metadata  Metadata      `json:"metadata"`
	Memory    MemoryState   `json:"memory"`

	// nextIndex is the next durable order key to assign. Order keys are
	// monotonic and never reused, even after compression removes messages
	// from the live history.
	nextIndex int
}

// NewAgentContext creates an empty context for a user.
func NewAgentContext(sessionID, userID string) *AgentContext {
	now := time.Now()
	return &AgentContext{
		SessionID: sessionID,
		UserID:    userID,
		Papers:    []Paper{},
		History:   []ChatMessage{},
		Metadata: Metadata{
			CreatedAt:      now,
			LastActivityAt: now,
		},
		Memory: MemoryState{
			Summaries: []ConversationSummary{},
			KeyFacts:  []KeyFact{},
		},
	}
}

// NextIndex returns the durable order key the next appended message will take.
func (c *AgentContext) NextIndex() int {
	return c.nextIndex
}

// SetNextIndex sets the order key counter, used when rebuilding a context
// from persisted messages.
func (c *AgentContext) SetNextIndex(n int) {
	c.nextIndex = n
}

// Append adds a message to the live history, assigns it the next durable
// order key, and refreshes the activity timestamp. It returns the assigned key.
func (c *AgentContext) Append(msg ChatMessage) int {
	idx := c.nextIndex
	c.nextIndex++
	c.History = append(c.History, msg)
	c.Touch()
	return idx
}

// Touch refreshes the TTL clock.
func (c *AgentContext) Touch() {
	c.Metadata.LastActivityAt = time.Now()
}

// AddPaper appends a paper unless one with the same ID is already present.
// It returns the index of the paper in the roster and whether it was added.
func (c *AgentContext) AddPaper(p Paper) (int, bool) {
	for i, existing := range c.Papers {
		if existing.ID == p.ID {
			return i, false
		}
	}
	c.Papers = append(c.Papers, p)
	return len(c.Papers) - 1, true
}

// PaperAt returns the paper at the given roster index, or nil if out of range.
func (c *AgentContext) PaperAt(idx int) *Paper {
	if idx < 0 || idx >= len(c.Papers) {
		return nil
	}
	return &c.Papers[idx]
}

// ClearPapers empties the paper roster.
func (c *AgentContext) ClearPapers() {
	c.Papers = c.Papers[:0]
}

// Expired reports whether the context's last activity is older than ttl.
func (c *AgentContext) Expired(ttl time.Duration) bool {
	return time.Since(c.Metadata.LastActivityAt) > ttl
}
