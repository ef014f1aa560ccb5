package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gittidev/vibe-socket-test/config"
	"github.com/gittidev/vibe-socket-test/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.ConfigureLogger(cfg.Log)

	// Log startup info
	logStartupInfo(ctx, logger, &cfg)

	app, err := bootstrap.NewApp(ctx, bootstrap.AppOptions{
		Config: &cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	return app.RunWithSignals(ctx)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting vibe-socket service",
		"broker", cfg.Broker.Backend,
		"channel", cfg.Broker.Channel,
		"topic_mode", cfg.Broker.TopicMode,
		"http_addr", cfg.HTTP.Addr,
		"workers", cfg.Jobs.Workers,
		"simulator", cfg.Simulator.Enabled,
		"metrics", cfg.Observability.Metrics.Backend)
}
