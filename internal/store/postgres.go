package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/store/sqlc"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// PostgresStore is the production Store backed by pgx and sqlc queries.
type PostgresStore struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
	logger  logger.Logger
}

// NewPostgresStore creates a store on top of an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		queries: sqlc.New(pool),
		logger:  log,
	}
}

// Pool exposes the underlying pool, used for health checks.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.queries.CreateSession(ctx, sqlc.CreateSessionParams{
		ID:             rec.ID,
		UserID:         rec.UserID,
		CreatedAt:      toTimestamptz(rec.CreatedAt),
		LastActivityAt: toTimestamptz(rec.LastActivityAt),
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	row, err := s.queries.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	rec := SessionRecord{
		ID:              row.ID,
		UserID:          row.UserID,
		CreatedAt:       row.CreatedAt.Time,
		LastActivityAt:  row.LastActivityAt.Time,
		TotalIterations: int(row.TotalIterations),
		SearchCount:     int(row.SearchCount),
		AnalysisCount:   int(row.AnalysisCount),
	}
	if row.EndedAt.Valid {
		ended := row.EndedAt.Time
		rec.EndedAt = &ended
	}
	return &rec, nil
}

func (s *PostgresStore) UpdateSessionActivity(ctx context.Context, sessionID string, at time.Time, iterations, searches, analyses int) error {
	err := s.queries.UpdateSessionActivity(ctx, sqlc.UpdateSessionActivityParams{
		ID:              sessionID,
		LastActivityAt:  toTimestamptz(at),
		TotalIterations: int32(iterations),
		SearchCount:     int32(searches),
		AnalysisCount:   int32(analyses),
	})
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID string) error {
	if err := s.queries.EndSession(ctx, sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ExpireSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	count, err := s.queries.ExpireSessionsBefore(ctx, toTimestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	return int(count), nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	rows, err := s.queries.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	result := make([]SessionRecord, 0, len(rows))
	for _, row := range rows {
		rec := SessionRecord{
			ID:              row.ID,
			UserID:          row.UserID,
			CreatedAt:       row.CreatedAt.Time,
			LastActivityAt:  row.LastActivityAt.Time,
			TotalIterations: int(row.TotalIterations),
			SearchCount:     int(row.SearchCount),
			AnalysisCount:   int(row.AnalysisCount),
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, rec MessageRecord) error {
	var toolCallsJSON []byte
	if len(rec.ToolCalls) > 0 {
		data, err := json.Marshal(rec.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		toolCallsJSON = data
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := s.queries.InsertMessage(ctx, sqlc.InsertMessageParams{
		SessionID:  rec.SessionID,
		Idx:        int32(rec.Index),
		Role:       string(rec.Role),
		Content:    rec.Content,
		ToolCalls:  toolCallsJSON,
		ToolCallID: rec.ToolCallID,
		CreatedAt:  toTimestamptz(createdAt),
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	rows, err := s.queries.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	result := make([]MessageRecord, 0, len(rows))
	for _, row := range rows {
		rec := MessageRecord{
			SessionID:  row.SessionID,
			Index:      int(row.Idx),
			Role:       conversation.Role(row.Role),
			Content:    row.Content,
			ToolCallID: row.ToolCallID,
			CreatedAt:  row.CreatedAt.Time,
		}
		if len(row.ToolCalls) > 0 {
			if err := json.Unmarshal(row.ToolCalls, &rec.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *PostgresStore) DeleteMessageRange(ctx context.Context, sessionID string, from, to int) error {
	err := s.queries.DeleteMessageRange(ctx, sqlc.DeleteMessageRangeParams{
		SessionID: sessionID,
		FromIdx:   int32(from),
		ToIdx:     int32(to),
	})
	if err != nil {
		return fmt.Errorf("delete message range: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendSummary(ctx context.Context, rec SummaryRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.queries.InsertSummary(ctx, sqlc.InsertSummaryParams{
		SessionID:     rec.SessionID,
		Content:       rec.Content,
		FromIdx:       int32(rec.From),
		ToIdx:         int32(rec.To),
		TokenEstimate: int32(rec.TokenEstimate),
		CreatedAt:     toTimestamptz(createdAt),
	})
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSummaries(ctx context.Context, sessionID string) ([]SummaryRecord, error) {
	rows, err := s.queries.ListSummaries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	result := make([]SummaryRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, SummaryRecord{
			SessionID:     row.SessionID,
			Content:       row.Content,
			From:          int(row.FromIdx),
			To:            int(row.ToIdx),
			TokenEstimate: int(row.TokenEstimate),
			CreatedAt:     row.CreatedAt.Time,
		})
	}
	return result, nil
}

func (s *PostgresStore) AppendKeyFact(ctx context.Context, rec KeyFactRecord) error {
	var indicesJSON []byte
	if len(rec.RelatedPaperIndices) > 0 {
		data, err := json.Marshal(rec.RelatedPaperIndices)
		if err != nil {
			return fmt.Errorf("marshal paper indices: %w", err)
		}
		indicesJSON = data
	}

	extractedAt := rec.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now()
	}

	_, err := s.queries.InsertKeyFact(ctx, sqlc.InsertKeyFactParams{
		SessionID:           rec.SessionID,
		FactType:            string(rec.Type),
		Content:             rec.Content,
		RelatedPaperIndices: indicesJSON,
		ExtractedAt:         toTimestamptz(extractedAt),
	})
	if err != nil {
		return fmt.Errorf("insert key fact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListKeyFacts(ctx context.Context, sessionID string) ([]KeyFactRecord, error) {
	rows, err := s.queries.ListKeyFacts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list key facts: %w", err)
	}

	result := make([]KeyFactRecord, 0, len(rows))
	for _, row := range rows {
		rec := KeyFactRecord{
			SessionID:   row.SessionID,
			Type:        conversation.FactType(row.FactType),
			Content:     row.Content,
			ExtractedAt: row.ExtractedAt.Time,
		}
		if len(row.RelatedPaperIndices) > 0 {
			if err := json.Unmarshal(row.RelatedPaperIndices, &rec.RelatedPaperIndices); err != nil {
				return nil, fmt.Errorf("unmarshal paper indices: %w", err)
			}
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *PostgresStore) UpsertPaper(ctx context.Context, rec PaperRecord) error {
	payload, err := json.Marshal(rec.Paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	err = s.queries.UpsertSessionPaper(ctx, sqlc.UpsertSessionPaperParams{
		SessionID: rec.SessionID,
		Position:  int32(rec.Position),
		ArxivID:   rec.Paper.ID,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPapers(ctx context.Context, sessionID string) ([]conversation.Paper, error) {
	rows, err := s.queries.ListSessionPapers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}

	papers := make([]conversation.Paper, 0, len(rows))
	for _, row := range rows {
		var paper conversation.Paper
		if err := json.Unmarshal(row.Payload, &paper); err != nil {
			return nil, fmt.Errorf("unmarshal paper: %w", err)
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

func toTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
