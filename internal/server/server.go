// Package server wires the research agent's components together behind the
// HTTP chat API and manages their lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkantor-dev/research_agent/internal/agents"
	appconfig "github.com/mkantor-dev/research_agent/internal/config"
	"github.com/mkantor-dev/research_agent/internal/memory_service"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/internal/models/anthropic"
	"github.com/mkantor-dev/research_agent/internal/models/openai"
	"github.com/mkantor-dev/research_agent/internal/session_manager"
	"github.com/mkantor-dev/research_agent/internal/store"
	"github.com/mkantor-dev/research_agent/internal/tools/annotate"
	"github.com/mkantor-dev/research_agent/internal/tools/paper_analyze"
	"github.com/mkantor-dev/research_agent/internal/tools/paper_search"
	"github.com/mkantor-dev/research_agent/pkg/health"
	"github.com/mkantor-dev/research_agent/pkg/health/checkers"
	"github.com/mkantor-dev/research_agent/pkg/logger"
	"github.com/mkantor-dev/research_agent/pkg/metrics"
)

// Server encapsulates the agent's components and lifecycle management.
type Server struct {
	cfg      *appconfig.AppConfig
	log      logger.Logger
	metrics  *metrics.Metrics
	pool     *pgxpool.Pool
	store    store.Store
	sessions session_manager.Manager
	memory   *memory_service.Service
	loop     *agents.Loop
	health   *health.HealthChecker
	httpSrv  *http.Server
}

// New creates a Server with all components initialized.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
	}

	if err := s.createStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	var err error
	s.sessions, err = session_manager.New(session_manager.Config{
		Store:  s.store,
		Logger: log,
		TTL:    cfg.Agent.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	llm, err := s.createLLMClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	log.Info("LLM client initialized", logger.StringField("model", llm.Name()))

	s.memory = memory_service.New(memory_service.Config{
		LLM:                  llm,
		Store:                s.store,
		Logger:               log,
		CompressionThreshold: cfg.Agent.CompressionThreshold,
		RecentBufferSize:     cfg.Agent.RecentBufferSize,
	})

	registry, err := s.createRegistry(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}

	s.loop = agents.New(agents.Config{
		Sessions:      s.sessions,
		Memory:        s.memory,
		LLM:           llm,
		Registry:      registry,
		Logger:        log,
		Metrics:       s.metrics,
		MaxIterations: cfg.Agent.MaxIterations,
	})

	s.health = s.createHealthChecker()

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s, nil
}

// Run starts the HTTP server and the TTL sweeper, blocking until the context
// is canceled, then shuts both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	sweepDone := make(chan struct{})
	go s.runSweeper(ctx, sweepDone)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", logger.IntField("port", s.cfg.Port))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP server shutdown error", logger.ErrorField(err))
	}
	<-sweepDone
	if s.pool != nil {
		s.pool.Close()
	}
	s.log.Info("Shutdown complete")
	return nil
}

// runSweeper periodically expires idle sessions.
func (s *Server) runSweeper(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Agent.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept := s.sessions.SweepExpired(ctx)
			if swept > 0 {
				s.metrics.ExpiredSessionsCounter.Add(float64(swept))
				s.log.Info("Expired sessions swept", logger.IntField("count", swept))
			}
		}
	}
}

// createStore selects the durable store: Postgres when DATABASE_URL is set,
// otherwise an in-memory store for local development.
func (s *Server) createStore(ctx context.Context) error {
	if s.cfg.Database.URL == "" {
		s.log.Warn("DATABASE_URL not set, using in-memory store; sessions will not survive a restart")
		s.store = store.NewMemStore()
		return nil
	}

	poolCfg, err := pgxpool.ParseConfig(s.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(s.cfg.Database.MaxConnections)
	poolCfg.MaxConnLifetime = s.cfg.Database.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = s.cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	if err := store.NewMigrationManager(pool, s.log).RunMigrations(); err != nil {
		pool.Close()
		return fmt.Errorf("running migrations: %w", err)
	}

	s.pool = pool
	s.store = store.NewPostgresStore(pool, s.log)
	s.log.Info("Connected to Postgres store")
	return nil
}

// createLLMClient creates a chat client for the configured provider.
func (s *Server) createLLMClient() (models.ChatClient, error) {
	switch strings.ToLower(s.cfg.LLM.Provider) {
	case "openai":
		return openai.New(s.cfg.LLM.OpenAIAPIKey, s.cfg.LLM.OpenAIModel)
	case "anthropic", "claude":
		return anthropic.New(s.cfg.LLM.AnthropicAPIKey, s.cfg.LLM.AnthropicModel)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.cfg.LLM.Provider)
	}
}

// createRegistry registers the research tool set.
func (s *Server) createRegistry(llm models.ChatClient) (*agents.Registry, error) {
	registry := agents.NewRegistry(s.log)

	searchTool := paper_search.New(paper_search.Config{
		BaseURL:       s.cfg.Search.ArxivBaseURL,
		Timeout:       s.cfg.Search.Timeout,
		MaxResultsCap: s.cfg.Search.MaxResultsCap,
	})
	analyzeTool := paper_analyze.New(paper_analyze.Config{
		LLM:     llm,
		Logger:  s.log,
		Timeout: s.cfg.LLM.Timeout,
	})

	for _, tool := range []agents.ToolHandler{searchTool, analyzeTool, annotate.New()} {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (s *Server) createHealthChecker() *health.HealthChecker {
	checker := health.New(health.WithLogger(s.log))
	if s.pool != nil {
		checker.AddReadinessCheck(checkers.NewPostgresChecker(s.pool, "postgres"))
	}
	return checker
}
