package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

// MemStore is an in-memory Store used in tests and when no database is
// configured. Sessions held here do not survive a process restart.
type MemStore struct {
	mu        sync.RWMutex
	sessions  map[string]*SessionRecord
	messages  map[string][]MessageRecord
	summaries map[string][]SummaryRecord
	facts     map[string][]KeyFactRecord
	papers    map[string][]PaperRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions:  make(map[string]*SessionRecord),
		messages:  make(map[string][]MessageRecord),
		summaries: make(map[string][]SummaryRecord),
		facts:     make(map[string][]KeyFactRecord),
		papers:    make(map[string][]PaperRecord),
	}
}

func (m *MemStore) CreateSession(_ context.Context, rec SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := rec
	m.sessions[rec.ID] = &copied
	return nil
}

func (m *MemStore) GetSession(_ context.Context, sessionID string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.EndedAt != nil {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MemStore) UpdateSessionActivity(_ context.Context, sessionID string, at time.Time, iterations, searches, analyses int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	rec.LastActivityAt = at
	rec.TotalIterations = iterations
	rec.SearchCount = searches
	rec.AnalysisCount = analyses
	return nil
}

func (m *MemStore) EndSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if rec.EndedAt == nil {
		now := time.Now()
		rec.EndedAt = &now
	}
	return nil
}

func (m *MemStore) ExpireSessionsBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	now := time.Now()
	for _, rec := range m.sessions {
		if rec.EndedAt == nil && rec.LastActivityAt.Before(cutoff) {
			rec.EndedAt = &now
			count++
		}
	}
	return count, nil
}

func (m *MemStore) ListSessions(_ context.Context, userID string) ([]SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []SessionRecord
	for _, rec := range m.sessions {
		if rec.UserID == userID && rec.EndedAt == nil {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})
	return result, nil
}

func (m *MemStore) AppendMessage(_ context.Context, rec MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[rec.SessionID] = append(m.messages[rec.SessionID], rec)
	return nil
}

func (m *MemStore) ListMessages(_ context.Context, sessionID string) ([]MessageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]MessageRecord, len(m.messages[sessionID]))
	copy(msgs, m.messages[sessionID])
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Index < msgs[j].Index })
	return msgs, nil
}

func (m *MemStore) DeleteMessageRange(_ context.Context, sessionID string, from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[sessionID][:0]
	for _, rec := range m.messages[sessionID] {
		if rec.Index < from || rec.Index > to {
			kept = append(kept, rec)
		}
	}
	m.messages[sessionID] = kept
	return nil
}

func (m *MemStore) AppendSummary(_ context.Context, rec SummaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[rec.SessionID] = append(m.summaries[rec.SessionID], rec)
	return nil
}

func (m *MemStore) ListSummaries(_ context.Context, sessionID string) ([]SummaryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sums := make([]SummaryRecord, len(m.summaries[sessionID]))
	copy(sums, m.summaries[sessionID])
	sort.Slice(sums, func(i, j int) bool { return sums[i].From < sums[j].From })
	return sums, nil
}

func (m *MemStore) AppendKeyFact(_ context.Context, rec KeyFactRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[rec.SessionID] = append(m.facts[rec.SessionID], rec)
	return nil
}

func (m *MemStore) ListKeyFacts(_ context.Context, sessionID string) ([]KeyFactRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	facts := make([]KeyFactRecord, len(m.facts[sessionID]))
	copy(facts, m.facts[sessionID])
	return facts, nil
}

func (m *MemStore) UpsertPaper(_ context.Context, rec PaperRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	papers := m.papers[rec.SessionID]
	for i, existing := range papers {
		if existing.Position == rec.Position {
			papers[i] = rec
			return nil
		}
	}
	m.papers[rec.SessionID] = append(papers, rec)
	return nil
}

func (m *MemStore) ListPapers(_ context.Context, sessionID string) ([]conversation.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := make([]PaperRecord, len(m.papers[sessionID]))
	copy(recs, m.papers[sessionID])
	sort.Slice(recs, func(i, j int) bool { return recs[i].Position < recs[j].Position })
	papers := make([]conversation.Paper, 0, len(recs))
	for _, rec := range recs {
		papers = append(papers, rec.Paper)
	}
	return papers, nil
}

var _ Store = (*MemStore)(nil)
