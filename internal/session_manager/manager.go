// Package session_manager owns the authoritative in-process AgentContext for
// each session: a read-through TTL cache in front of the durable store, with
// DB-backed recovery on cache miss and per-session turn serialization.
package session_manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/store"
	"github.com/mkantor-dev/research_agent/pkg/logger"
	"github.com/mkantor-dev/research_agent/pkg/prefixed_uuid"
)

// Manager provides session context lifecycle management.
type Manager interface {
	// Create allocates a fresh context for a user and caches it. The durable
	// create is best-effort: the context is usable even if the store is down.
	Create(ctx context.Context, userID string) *conversation.AgentContext

	// Get returns the live context for a session, or nil if the session is
	// expired, missing, owned by another user, or unrecoverable. An expired
	// session is evicted and durably ended; it must not be resurrected.
	Get(ctx context.Context, sessionID, userID string) *conversation.AgentContext

	// Delete evicts the session from the cache and marks it ended durably.
	// It reports whether a cache entry existed.
	Delete(ctx context.Context, sessionID string) bool

	// AddMessage appends a message through the context's durable order key
	// assignment and best-effort persists it. It returns the assigned key.
	AddMessage(ctx context.Context, agentCtx *conversation.AgentContext, msg conversation.ChatMessage) int

	// PersistMetadata best-effort persists counters and the activity timestamp.
	PersistMetadata(ctx context.Context, agentCtx *conversation.AgentContext)

	// PersistPapers best-effort upserts the given roster positions so the
	// paper roster survives a cache miss or restart.
	PersistPapers(ctx context.Context, agentCtx *conversation.AgentContext, positions ...int)

	// LockSession serializes turns for one session id. The returned function
	// releases the lock.
	LockSession(sessionID string) func()

	// SweepExpired bulk-expires sessions past the TTL, in the store and the
	// cache, returning how many store rows were ended.
	SweepExpired(ctx context.Context) int

	// ListSessions returns the live sessions for a user, newest first.
	ListSessions(ctx context.Context, userID string) ([]SessionInfo, error)

	// Store exposes the underlying durable store.
	Store() store.Store
}

// sessionManager implements the Manager interface.
type sessionManager struct {
	config       Config
	cache        *contextCache
	sessionLocks map[string]*sync.Mutex
	lockMux      sync.Mutex
}

// New creates a new session manager instance.
func New(config Config) (Manager, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}

	return &sessionManager{
		config:       config,
		cache:        newContextCache(),
		sessionLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (sm *sessionManager) Store() store.Store {
	return sm.config.Store
}

// Create allocates a fresh context with empty history and zero counters.
func (sm *sessionManager) Create(ctx context.Context, userID string) *conversation.AgentContext {
	sessionID := prefixed_uuid.New("session").String()
	agentCtx := conversation.NewAgentContext(sessionID, userID)

	sm.cache.put(sessionID, agentCtx)

	if err := sm.config.Store.CreateSession(ctx, store.SessionRecord{
		ID:             sessionID,
		UserID:         userID,
		CreatedAt:      agentCtx.Metadata.CreatedAt,
		LastActivityAt: agentCtx.Metadata.LastActivityAt,
	}); err != nil {
		sm.config.Logger.Warn("Failed to persist session creation",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		// Session stays usable on in-memory state alone
	}

	sm.config.Logger.Info("Created new session",
		logger.StringField("session_id", sessionID),
		logger.StringField("user_id", userID))

	return agentCtx
}

// Get resolves a session context through the cache, recovering from the
// store on a miss.
func (sm *sessionManager) Get(ctx context.Context, sessionID, userID string) *conversation.AgentContext {
	if agentCtx, ok := sm.cache.get(sessionID); ok {
		if agentCtx.Expired(sm.config.TTL) {
			sm.expire(ctx, sessionID)
			return nil
		}
		if agentCtx.UserID != userID {
			sm.config.Logger.Warn("Session ownership mismatch",
				logger.StringField("session_id", sessionID),
				logger.StringField("user_id", userID))
			return nil
		}
		return agentCtx
	}

	return sm.recover(ctx, sessionID, userID)
}

// recover rebuilds a context from the durable store. Any read failure fails
// the whole lookup rather than returning a partially built context.
func (sm *sessionManager) recover(ctx context.Context, sessionID, userID string) *conversation.AgentContext {
	sess, err := sm.config.Store.GetSession(ctx, sessionID)
	if err != nil {
		if err != store.ErrNotFound {
			sm.config.Logger.Error("Failed to read session from store",
				logger.StringField("session_id", sessionID),
				logger.ErrorField(err))
		}
		return nil
	}

	if sess.UserID != userID {
		sm.config.Logger.Warn("Session ownership mismatch",
			logger.StringField("session_id", sessionID),
			logger.StringField("user_id", userID))
		return nil
	}

	if time.Since(sess.LastActivityAt) > sm.config.TTL {
		if err := sm.config.Store.EndSession(ctx, sessionID); err != nil {
			sm.config.Logger.Warn("Failed to end expired session",
				logger.StringField("session_id", sessionID),
				logger.ErrorField(err))
		}
		return nil
	}

	messages, err := sm.config.Store.ListMessages(ctx, sessionID)
	if err != nil {
		sm.config.Logger.Error("Failed to load messages",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		return nil
	}
	summaries, err := sm.config.Store.ListSummaries(ctx, sessionID)
	if err != nil {
		sm.config.Logger.Error("Failed to load summaries",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		return nil
	}
	facts, err := sm.config.Store.ListKeyFacts(ctx, sessionID)
	if err != nil {
		sm.config.Logger.Error("Failed to load key facts",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		return nil
	}
	papers, err := sm.config.Store.ListPapers(ctx, sessionID)
	if err != nil {
		sm.config.Logger.Error("Failed to load papers",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		return nil
	}

	agentCtx := sm.rebuild(sess, messages, summaries, facts, papers)
	sm.cache.put(sessionID, agentCtx)

	sm.config.Logger.Info("Recovered session from store",
		logger.StringField("session_id", sessionID),
		logger.IntField("messages", len(messages)),
		logger.IntField("summaries", len(summaries)))

	return agentCtx
}

// rebuild assembles a live context from persisted records. The persisted
// summaries are authoritative for the recent buffer boundary; a cached
// boundary is never trusted across a restart.
func (sm *sessionManager) rebuild(
	sess *store.SessionRecord,
	messages []store.MessageRecord,
	summaries []store.SummaryRecord,
	facts []store.KeyFactRecord,
	papers []conversation.Paper,
) *conversation.AgentContext {
	agentCtx := conversation.NewAgentContext(sess.ID, sess.UserID)
	agentCtx.Metadata.CreatedAt = sess.CreatedAt
	agentCtx.Metadata.LastActivityAt = sess.LastActivityAt
	agentCtx.Metadata.TotalIterations = sess.TotalIterations
	agentCtx.Metadata.SearchCount = sess.SearchCount
	agentCtx.Metadata.AnalysisCount = sess.AnalysisCount
	agentCtx.Papers = papers
	if agentCtx.Papers == nil {
		agentCtx.Papers = []conversation.Paper{}
	}

	for _, s := range summaries {
		agentCtx.Memory.Summaries = append(agentCtx.Memory.Summaries, conversation.ConversationSummary{
			Content:       s.Content,
			MessageRange:  conversation.MessageRange{From: s.From, To: s.To},
			CreatedAt:     s.CreatedAt,
			TokenEstimate: s.TokenEstimate,
		})
	}
	for _, f := range facts {
		agentCtx.Memory.KeyFacts = append(agentCtx.Memory.KeyFacts, conversation.KeyFact{
			Type:                f.Type,
			Content:             f.Content,
			RelatedPaperIndices: f.RelatedPaperIndices,
			ExtractedAt:         f.ExtractedAt,
		})
	}

	nextIndex := 0
	if n := len(agentCtx.Memory.Summaries); n > 0 {
		last := agentCtx.Memory.Summaries[n-1]
		agentCtx.Memory.RecentBufferStart = last.MessageRange.To + 1
		nextIndex = last.MessageRange.To + 1
		agentCtx.History = append(agentCtx.History, conversation.SummaryPlaceholder(last))
	}

	for _, m := range messages {
		if m.Index < agentCtx.Memory.RecentBufferStart {
			// Raw rows covered by a summary may survive a failed cleanup.
			continue
		}
		agentCtx.History = append(agentCtx.History, conversation.ChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
		if m.Index >= nextIndex {
			nextIndex = m.Index + 1
		}
	}
	agentCtx.SetNextIndex(nextIndex)

	return agentCtx
}

// Delete evicts from cache and marks ended durably.
func (sm *sessionManager) Delete(ctx context.Context, sessionID string) bool {
	existed := sm.cache.delete(sessionID)

	if err := sm.config.Store.EndSession(ctx, sessionID); err != nil && err != store.ErrNotFound {
		sm.config.Logger.Warn("Failed to end session in store",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
	}

	return existed
}

// AddMessage appends through the context and persists the message under its
// assigned durable order key.
func (sm *sessionManager) AddMessage(ctx context.Context, agentCtx *conversation.AgentContext, msg conversation.ChatMessage) int {
	idx := agentCtx.Append(msg)

	if err := sm.config.Store.AppendMessage(ctx, store.MessageRecord{
		SessionID:  agentCtx.SessionID,
		Index:      idx,
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCalls:  msg.ToolCalls,
		ToolCallID: msg.ToolCallID,
		CreatedAt:  time.Now(),
	}); err != nil {
		sm.config.Logger.Warn("Failed to persist message",
			logger.StringField("session_id", agentCtx.SessionID),
			logger.IntField("index", idx),
			logger.ErrorField(err))
	}

	return idx
}

// PersistMetadata fire-and-forget persists counters and the TTL clock.
func (sm *sessionManager) PersistMetadata(ctx context.Context, agentCtx *conversation.AgentContext) {
	err := sm.config.Store.UpdateSessionActivity(ctx,
		agentCtx.SessionID,
		agentCtx.Metadata.LastActivityAt,
		agentCtx.Metadata.TotalIterations,
		agentCtx.Metadata.SearchCount,
		agentCtx.Metadata.AnalysisCount,
	)
	if err != nil && err != store.ErrNotFound {
		sm.config.Logger.Warn("Failed to persist session metadata",
			logger.StringField("session_id", agentCtx.SessionID),
			logger.ErrorField(err))
	}
}

// PersistPapers upserts each changed roster position. Like the other writes
// this is best-effort: a failed upsert degrades durability only.
func (sm *sessionManager) PersistPapers(ctx context.Context, agentCtx *conversation.AgentContext, positions ...int) {
	for _, pos := range positions {
		paper := agentCtx.PaperAt(pos)
		if paper == nil {
			continue
		}
		if err := sm.config.Store.UpsertPaper(ctx, store.PaperRecord{
			SessionID: agentCtx.SessionID,
			Position:  pos,
			Paper:     *paper,
		}); err != nil {
			sm.config.Logger.Warn("Failed to persist paper",
				logger.StringField("session_id", agentCtx.SessionID),
				logger.IntField("position", pos),
				logger.ErrorField(err))
		}
	}
}

// LockSession returns after acquiring the per-session mutex; the returned
// function releases it. Concurrent turns for one session id serialize here.
func (sm *sessionManager) LockSession(sessionID string) func() {
	sm.lockMux.Lock()
	lock, exists := sm.sessionLocks[sessionID]
	if !exists {
		lock = &sync.Mutex{}
		sm.sessionLocks[sessionID] = lock
	}
	sm.lockMux.Unlock()

	lock.Lock()
	return lock.Unlock
}

// expire evicts a session and durably ends it.
func (sm *sessionManager) expire(ctx context.Context, sessionID string) {
	sm.cache.delete(sessionID)
	if err := sm.config.Store.EndSession(ctx, sessionID); err != nil && err != store.ErrNotFound {
		sm.config.Logger.Warn("Failed to end expired session",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
	}
	sm.config.Logger.Info("Session expired",
		logger.StringField("session_id", sessionID))
}

// SweepExpired runs the periodic TTL sweep.
func (sm *sessionManager) SweepExpired(ctx context.Context) int {
	cutoff := time.Now().Add(-sm.config.TTL)

	for _, sessionID := range sm.cache.snapshot() {
		if agentCtx, ok := sm.cache.get(sessionID); ok && agentCtx.Expired(sm.config.TTL) {
			sm.cache.delete(sessionID)
		}
	}

	count, err := sm.config.Store.ExpireSessionsBefore(ctx, cutoff)
	if err != nil {
		sm.config.Logger.Warn("Failed to expire sessions in store",
			logger.ErrorField(err))
		return 0
	}
	if count > 0 {
		sm.config.Logger.Info("Expired sessions",
			logger.IntField("count", count))
	}
	return count
}

// ListSessions returns live sessions for a user.
func (sm *sessionManager) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	records, err := sm.config.Store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	result := make([]SessionInfo, 0, len(records))
	for _, rec := range records {
		result = append(result, SessionInfo{
			SessionID:       rec.ID,
			UserID:          rec.UserID,
			CreatedAt:       rec.CreatedAt,
			LastActive:      rec.LastActivityAt,
			TotalIterations: rec.TotalIterations,
			SearchCount:     rec.SearchCount,
			AnalysisCount:   rec.AnalysisCount,
		})
	}
	return result, nil
}
