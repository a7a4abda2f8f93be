package memory_service

import (
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/internal/store"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

const (
	// DefaultCompressionThreshold is the live history length at which
	// compression triggers.
	DefaultCompressionThreshold = 25

	// DefaultRecentBufferSize is how many of the newest messages are always
	// kept verbatim.
	DefaultRecentBufferSize = 10

	// toolResultPreviewLen caps how much of a tool result payload is fed to
	// the summarization prompt.
	toolResultPreviewLen = 200
)

// Config holds configuration for the memory service.
type Config struct {
	LLM    models.ChatClient
	Store  store.Store
	Logger logger.Logger

	// CompressionThreshold and RecentBufferSize override the defaults when
	// positive.
	CompressionThreshold int
	RecentBufferSize     int
}

// Service keeps a session's conversation history bounded while preserving
// retrievable meaning: a verbatim recent buffer, ordered summaries over older
// contiguous ranges, and an ever-growing list of extracted key facts.
type Service struct {
	llm          models.ChatClient
	store        store.Store
	log          logger.Logger
	threshold    int
	recentBuffer int
}

// New creates a new memory service with the given configuration.
func New(cfg Config) *Service {
	if cfg.LLM == nil {
		panic("llm client cannot be nil")
	}
	if cfg.Store == nil {
		panic("store cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = DefaultCompressionThreshold
	}
	if cfg.RecentBufferSize <= 0 {
		cfg.RecentBufferSize = DefaultRecentBufferSize
	}

	return &Service{
		llm:          cfg.LLM,
		store:        cfg.Store,
		log:          cfg.Logger,
		threshold:    cfg.CompressionThreshold,
		recentBuffer: cfg.RecentBufferSize,
	}
}
