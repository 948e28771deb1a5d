package main

import (
	"context"
	"fmt"

	"github.com/barekit/docscope/pkg/config"
	"github.com/barekit/docscope/pkg/knowledge"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:   "docscope",
	Short: "Scoped document retrieval",
	Long: `docscope stores documents with their embeddings and answers questions
by ranking only the documents a user has selected.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// newLogger builds a zap logger from the observability settings.
func newLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zcfg zap.Config
	switch cfg.LogFormat {
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// env holds what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	kb     *knowledge.KnowledgeBase
	close  knowledge.Closer
}

// setup loads configuration and opens the knowledge base. The caller must
// call shutdown.
func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Observability)
	if err != nil {
		return nil, err
	}

	kb, closer, err := knowledge.NewFactory(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return &env{cfg: cfg, logger: logger, kb: kb, close: closer}, nil
}

func (e *env) shutdown(ctx context.Context) {
	if err := e.close(ctx); err != nil {
		e.logger.Warn("failed to close backends", zap.Error(err))
	}
	_ = e.logger.Sync()
}
