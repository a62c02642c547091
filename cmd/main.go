package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"

	"github.com/angeloszaimis/uptime-tracker/config"
	"github.com/angeloszaimis/uptime-tracker/internal/checker"
	"github.com/angeloszaimis/uptime-tracker/internal/definitions"
	"github.com/angeloszaimis/uptime-tracker/internal/handler"
	"github.com/angeloszaimis/uptime-tracker/internal/httppool"
	"github.com/angeloszaimis/uptime-tracker/internal/httpserver"
	"github.com/angeloszaimis/uptime-tracker/internal/metrics"
	"github.com/angeloszaimis/uptime-tracker/internal/notify"
	"github.com/angeloszaimis/uptime-tracker/internal/state"
	"github.com/angeloszaimis/uptime-tracker/internal/tracker"
	"github.com/angeloszaimis/uptime-tracker/pkg/logger"
)

const metricsBuffer = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)
	config.Watch(func(next *config.Config) {
		logger.SetLevel(next.Logging.Level)
		log.Info("Log level updated", slog.String("level", next.Logging.Level))
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defs, err := definitions.Open(cfg.Store.Driver, cfg.Store.DSN, log)
	if err != nil {
		log.Error("Failed to open definitions store",
			slog.String("driver", cfg.Store.Driver),
			slog.Any("err", err))
		os.Exit(1)
	}

	pool := httppool.New(cfg.HTTPTimeout())
	collector := metrics.NewCollector(metricsBuffer, log)
	collector.Start(ctx)

	states := state.New()
	track := tracker.New(states, defs, checker.NewDispatcher(pool), newEmitter(cfg, log), log,
		tracker.WithConcurrency(cfg.Tracker.Concurrency),
		tracker.WithMetrics(collector))

	hub := handler.NewHub(log, states)
	track.OnCycle(hub.Broadcast)

	scheduler, err := startFileSync(ctx, cfg, defs, track, log)
	if err != nil {
		log.Error("Failed to schedule definitions file sync", slog.Any("err", err))
		os.Exit(1)
	}

	trackDone := startTracker(ctx, track, log)

	api := handler.NewAPI(log, states, defs, track)
	mux := setupRouter(api, hub, collector, pool)

	srv, err := httpserver.New(cfg.Server.Address, handler.Logging(log, mux))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}
	srv.OnShutdown(hub.Close)

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Uptime tracker listening", slog.String("address", cfg.Server.Address))
		srvErrCh <- srv.Start()
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting uptime tracker", slog.Any("err", err))
			exitCode = 1
		}
		cancel()
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("Error during shutdown", slog.Any("err", err))
	}
	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			log.Error("Error stopping scheduler", slog.Any("err", err))
		}
	}
	<-trackDone
	<-collector.Done()

	if err := defs.Close(); err != nil {
		log.Error("Error closing definitions store", slog.Any("err", err))
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// startTracker runs the tracking loop in the background. The returned channel
// is closed once the loop, including any cycle in flight, has returned.
func startTracker(ctx context.Context, track *tracker.Tracker, log *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := track.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Tracking loop stopped", slog.Any("err", err))
		}
	}()
	return done
}

// newEmitter returns an emitter posting to the configured webhook, or a
// disabled one when no webhook is set.
func newEmitter(cfg *config.Config, log *slog.Logger) *notify.Emitter {
	if cfg.Notify.Webhook == "" {
		log.Warn("No alert webhook configured, notifications disabled")
		return notify.NewEmitter(nil, cfg.Notify.Mention, log)
	}
	return notify.NewEmitter(notify.NewMattermostSink(cfg.Notify.Webhook), cfg.Notify.Mention, log)
}

// startFileSync syncs the definitions file once and schedules further syncs.
// It returns a nil scheduler when no file is configured.
func startFileSync(ctx context.Context, cfg *config.Config, defs *definitions.Store, track *tracker.Tracker, log *slog.Logger) (gocron.Scheduler, error) {
	if cfg.Definitions.File == "" {
		return nil, nil
	}

	if err := defs.CreateSchemaIfMissing(ctx); err != nil {
		return nil, err
	}

	fileSync := definitions.NewFileSync(defs, cfg.Definitions.File, track.SignalReload, log)

	scheduler, err := gocron.NewScheduler(gocron.WithLogger(log))
	if err != nil {
		return nil, err
	}

	if _, err := fileSync.Schedule(ctx, scheduler, cfg.SyncInterval()); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}

	scheduler.Start()
	log.Info("Definitions file sync scheduled",
		slog.String("file", cfg.Definitions.File),
		slog.Duration("interval", cfg.SyncInterval()))

	return scheduler, nil
}
