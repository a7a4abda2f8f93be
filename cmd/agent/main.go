package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/mkantor-dev/research_agent/internal/config"
	"github.com/mkantor-dev/research_agent/internal/server"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the optional YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
	})
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
