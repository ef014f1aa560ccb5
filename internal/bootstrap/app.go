package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gittidev/vibe-socket-test/config"
	"github.com/gittidev/vibe-socket-test/internal/adapters/jobrunner"
	"github.com/gittidev/vibe-socket-test/internal/adapters/scheduler"
	"github.com/gittidev/vibe-socket-test/internal/adapters/websocket"
	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/alert"
	"github.com/gittidev/vibe-socket-test/internal/domain/job"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	"github.com/gittidev/vibe-socket-test/internal/domain/patient"
	httpx "github.com/gittidev/vibe-socket-test/internal/http"
	"github.com/gittidev/vibe-socket-test/internal/service"
)

// AppOptions groups what NewApp needs. Channel and Executor are optional overrides;
// by default the channel is built from Config.Broker and the executor simulates
// patient processing from Config.Processing.
type AppOptions struct {
	Config   *config.AppConfig
	Logger   *slog.Logger
	Channel  core.EventChannel
	Executor core.Executor
}

// App holds the wired service graph.
type App struct {
	cfg    *config.AppConfig
	logger *slog.Logger

	Channel   core.EventChannel
	Runner    *jobrunner.Runner
	Hub       *service.RelayHub
	Jobs      *service.JobService
	Simulator *scheduler.Runner // nil when disabled
	Alerts    *service.AlertMonitor // nil when disabled
	Roster    *patient.Roster
	Metrics   Metrics
	Server    *http.Server

	addrMu    sync.Mutex
	addr      string
	listening chan struct{}

	stopAlerts func()
}

// NewApp connects the broker and wires the job pipeline, the relay hub and the HTTP router.
func NewApp(ctx context.Context, opts AppOptions) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	channel := opts.Channel
	if channel == nil {
		ch, err := NewEventChannel(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		channel = ch
	}

	app, err := wireApp(cfg, channel, opts.Executor, logger)
	if err != nil {
		if cerr := channel.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close event channel: %w", cerr))
		}
		return nil, err
	}
	return app, nil
}

func wireApp(cfg *config.AppConfig, channel core.EventChannel, executor core.Executor, logger *slog.Logger) (*App, error) {
	metrics := BuildMetrics(cfg.Observability.Metrics, logger)
	topics := cfg.Broker.Topics()

	retry, err := job.NewRetryPolicy(cfg.Jobs.PublishRetries, cfg.Jobs.PublishBackoff, cfg.Jobs.PublishMaxBackoff)
	if err != nil {
		return nil, fmt.Errorf("publish retry policy: %w", err)
	}

	var registry core.JobRegistry
	if cfg.Jobs.Deduplicate {
		registry = job.NewRegistry()
	}

	if executor == nil {
		if cfg.Processing.Mode == config.ProcessingVitals {
			executor = jobrunner.NewRandomVitalsExecutor(cfg.Processing.Delay)
		} else {
			executor = jobrunner.NewVitalsExecutor(cfg.Processing.Delay, cfg.Processing.Payload)
		}
	}

	roster, err := patient.LoadRoster(cfg.Roster.File)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Channel:        channel,
		Executor:       executor,
		Registry:       registry,
		Topics:         topics,
		Logger:         logger,
		Metrics:        metrics.Sink,
		Concurrency:    cfg.Jobs.Workers,
		QueueSize:      cfg.Jobs.QueueSize,
		ExecTimeout:    cfg.Jobs.ExecTimeout,
		PublishTimeout: cfg.Broker.PublishTimeout,
		Retry:          retry,
	})
	if err != nil {
		return nil, fmt.Errorf("create job runner: %w", err)
	}

	hub, err := service.NewRelayHub(service.RelayHubOptions{
		Channel:      channel,
		Topics:       topics,
		PollInterval: cfg.Relay.PollInterval,
		Logger:       logger,
		Metrics:      metrics.Sink,
	})
	if err != nil {
		return nil, err
	}

	jobs := service.MustNewJobService(service.JobServiceOptions{
		Submitter: runner,
		Registry:  registry,
		Logger:    logger,
	})

	var simulator *scheduler.Runner
	if cfg.Simulator.Enabled {
		simulator, err = scheduler.NewRunner(scheduler.RunnerOptions{
			Submitter: runner,
			Schedule:  cfg.Simulator.Schedule,
			Patients:  cfg.Simulator.Patients,
			Logger:    logger,
			Metrics:   metrics.Sink,
		})
		if err != nil {
			return nil, fmt.Errorf("create simulator: %w", err)
		}
	}

	monitor, rules, err := buildAlerts(cfg, channel, topics, roster, logger, metrics)
	if err != nil {
		return nil, err
	}

	upgrader := websocket.NewUpgrader(websocket.UpgraderOptions{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Conn: websocket.Options{
			WriteWait:      cfg.Relay.WriteWait,
			PongWait:       cfg.Relay.PongWait,
			MaxMessageSize: cfg.Relay.MaxMessageSize,
			Logger:         logger,
		},
	})

	services := httpx.RouterServices{
		Jobs:           jobs,
		Hub:            hub,
		Upgrader:       upgrader,
		Alerts:         rules,
		Patients:       roster,
		Metrics:        metrics.Handler,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		SubmitLimit: httpx.RateLimitConfig{
			RPS:   cfg.HTTP.SubmitRateLimit,
			Burst: cfg.HTTP.SubmitRateBurst,
		},
		Logger: logger,
	}
	if p, ok := channel.(core.Pinger); ok {
		services.Ready = p
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		Channel:   channel,
		Runner:    runner,
		Hub:       hub,
		Jobs:      jobs,
		Simulator: simulator,
		Alerts:    monitor,
		Roster:    roster,
		Metrics:   metrics,
		Server:    newHTTPServer(cfg.HTTP, services),
		listening: make(chan struct{}),
	}, nil
}

// buildAlerts wires the alert monitor and its rule API. Both are nil when alerts are disabled.
func buildAlerts(
	cfg *config.AppConfig,
	channel core.EventChannel,
	topics model.Topics,
	roster *patient.Roster,
	logger *slog.Logger,
	metrics Metrics,
) (*service.AlertMonitor, *service.AlertRuleService, error) {
	if !cfg.Alerts.Enabled {
		return nil, nil, nil
	}
	extractor, err := alert.NewExtractor(alert.Paths{
		HR:        cfg.Alerts.PathHR,
		SBP:       cfg.Alerts.PathSBP,
		SpO2:      cfg.Alerts.PathSpO2,
		Temp:      cfg.Alerts.PathTemp,
		RR:        cfg.Alerts.PathRR,
		Timestamp: cfg.Alerts.PathTimestamp,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("alert paths: %w", err)
	}
	store := alert.NewRuleStore(alert.DefaultThresholds())
	monitor, err := service.NewAlertMonitor(service.AlertMonitorOptions{
		Channel:          channel,
		Roster:           roster,
		Rules:            store,
		Extractor:        extractor,
		Evaluator:        alert.NewEvaluator(alert.EvaluatorOptions{Throttle: cfg.Alerts.Throttle}),
		Topics:           topics,
		PollInterval:     cfg.Relay.PollInterval,
		ResubscribeDelay: cfg.Alerts.ResubscribeDelay,
		PublishTimeout:   cfg.Broker.PublishTimeout,
		Logger:           logger,
		Metrics:          metrics.Sink,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create alert monitor: %w", err)
	}
	rules, err := service.NewAlertRuleService(store, logger)
	if err != nil {
		return nil, nil, err
	}
	return monitor, rules, nil
}

// Listening is closed once the HTTP listener is bound.
func (a *App) Listening() <-chan struct{} { return a.listening }

// Addr returns the bound listener address, or "" before Run has bound it.
func (a *App) Addr() string {
	a.addrMu.Lock()
	defer a.addrMu.Unlock()
	return a.addr
}

// RunWithSignals runs the app until SIGINT or SIGTERM.
func (a *App) RunWithSignals(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

// Run serves HTTP and, when enabled, the simulator until ctx is cancelled or a
// component fails, then shuts everything down in dependency order.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		a.closeAll(context.Background())
		return fmt.Errorf("listen %s: %w", a.Server.Addr, err)
	}
	a.addrMu.Lock()
	a.addr = ln.Addr().String()
	a.addrMu.Unlock()
	close(a.listening)

	a.startAlerts(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	simCtx, stopSim := context.WithCancel(gctx)
	simDone := make(chan struct{})
	if a.Simulator != nil {
		g.Go(func() error {
			defer close(simDone)
			return a.Simulator.Run(simCtx)
		})
	} else {
		close(simDone)
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down services...")
		stopSim()
		<-simDone
		return a.closeAll(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// startAlerts runs the alert monitor outside the errgroup so it keeps evaluating the
// results the runner drains during shutdown. closeAll stops it.
func (a *App) startAlerts(ctx context.Context) {
	if a.Alerts == nil {
		return
	}
	alertCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Alerts.Run(alertCtx); err != nil {
			a.logger.Error("alert monitor failed", "error", err)
		}
	}()
	a.stopAlerts = func() {
		cancel()
		<-done
	}
}

// closeAll stops intake first and releases the broker last: HTTP, then the runner
// (so queued results still publish), then the alert monitor and relays, then the
// channel and metrics.
func (a *App) closeAll(ctx context.Context) error {
	var errs []error

	if err := ShutdownHTTPServer(ShutdownConfig{
		Context: ctx,
		Server:  a.Server,
		Timeout: a.cfg.HTTP.ShutdownTimeout,
		Logger:  a.logger,
	}); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}

	drainCtx, cancel := context.WithTimeout(ctx, a.cfg.Jobs.DrainTimeout)
	if err := a.Runner.Stop(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop job runner: %w", err))
	}
	cancel()

	if a.stopAlerts != nil {
		a.stopAlerts()
	}

	hubCtx, cancel := context.WithTimeout(ctx, a.cfg.HTTP.ShutdownTimeout)
	if err := a.Hub.Shutdown(hubCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown relays: %w", err))
	}
	cancel()

	if err := a.Channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event channel: %w", err))
	}
	if err := a.Metrics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("graceful stop failed", "error", err)
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
