package session_manager

import (
	"time"

	"github.com/mkantor-dev/research_agent/internal/store"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// DefaultTTL is the inactivity window after which a session is expired.
const DefaultTTL = 30 * time.Minute

// Config holds configuration for the session manager.
type Config struct {
	Store  store.Store
	Logger logger.Logger
	TTL    time.Duration
}

// SessionInfo is a lightweight session listing entry.
type SessionInfo struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	CreatedAt       time.Time `json:"created_at"`
	LastActive      time.Time `json:"last_active"`
	TotalIterations int       `json:"total_iterations"`
	SearchCount     int       `json:"search_count"`
	AnalysisCount   int       `json:"analysis_count"`
}
