package agents

import (
	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/memory_service"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/internal/session_manager"
	"github.com/mkantor-dev/research_agent/pkg/logger"
	"github.com/mkantor-dev/research_agent/pkg/metrics"
)

const (
	// DefaultMaxIterations bounds the call/execute cycle within one turn.
	DefaultMaxIterations = 8

	// fallbackContextWindow is how many raw messages the model sees while
	// the session has never been compressed.
	fallbackContextWindow = 20
)

// TurnResult is the outcome of one user turn, in every terminal state.
type TurnResult struct {
	SessionID  string               `json:"session_id"`
	Message    string               `json:"message"`
	Papers     []conversation.Paper `json:"papers"`
	ToolsUsed  []string             `json:"tools_used"`
	Iterations int                  `json:"iterations"`
	Done       bool                 `json:"done"`
	Error      string               `json:"error,omitempty"`
}

// Config holds the collaborators a Loop needs.
type Config struct {
	Sessions      session_manager.Manager
	Memory        *memory_service.Service
	LLM           models.ChatClient
	Registry      *Registry
	Logger        logger.Logger
	Metrics       *metrics.Metrics
	SystemPrompt  string
	MaxIterations int
}

// Loop runs the bounded tool-calling cycle for user turns.
type Loop struct {
	sessions      session_manager.Manager
	memory        *memory_service.Service
	llm           models.ChatClient
	registry      *Registry
	logger        logger.Logger
	metrics       *metrics.Metrics
	systemPrompt  string
	maxIterations int
}

func New(cfg Config) *Loop {
	if cfg.Sessions == nil || cfg.Memory == nil || cfg.LLM == nil || cfg.Registry == nil || cfg.Logger == nil {
		panic("agents: missing required dependency")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Loop{
		sessions:      cfg.Sessions,
		memory:        cfg.Memory,
		llm:           cfg.LLM,
		registry:      cfg.Registry,
		logger:        cfg.Logger.WithFields(logger.StringField("component", "agent_loop")),
		metrics:       cfg.Metrics,
		systemPrompt:  cfg.SystemPrompt,
		maxIterations: cfg.MaxIterations,
	}
}
