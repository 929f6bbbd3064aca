package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketSync/internal/domain/repository"
	"MarketSync/internal/handler/ws"
	"MarketSync/internal/usecase"
	"MarketSync/pkg/config"
	xhttp "MarketSync/pkg/http"
	"MarketSync/pkg/logger"
)

// App owns the process lifecycle: the polling loops, the snapshot publisher
// and the HTTP surface.
type App struct {
	cfg       *config.Config
	log       *logger.Logger
	view      *usecase.MarketView
	source    usecase.PollSource
	metrics   repository.Metrics
	publisher *usecase.SnapshotPublisher
	server    *xhttp.Server
	hub       *ws.Hub
}

// New assembles an App. publisher may be nil when no sink is configured.
func New(
	cfg *config.Config,
	log *logger.Logger,
	view *usecase.MarketView,
	source usecase.PollSource,
	metrics repository.Metrics,
	publisher *usecase.SnapshotPublisher,
	server *xhttp.Server,
	hub *ws.Hub,
) *App {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &App{
		cfg:       cfg,
		log:       log,
		view:      view,
		source:    source,
		metrics:   metrics,
		publisher: publisher,
		server:    server,
		hub:       hub,
	}
}

// Run blocks until SIGINT/SIGTERM or a fatal server error.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run driven by ctx instead of process signals.
func (a *App) RunContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.publisher != nil {
		unsub := a.view.OnSnapshot(a.publisher.Enqueue)
		defer unsub()
		a.publisher.Start(ctx)
	}

	poller := usecase.StartPoller(ctx, a.source, a.view, usecase.PollerConfig{
		QuotesInterval: a.cfg.Polling.QuotesInterval,
		StatusInterval: a.cfg.Polling.StatusInterval,
	}, a.log, a.metrics)
	defer poller.Stop()
	a.log.Info("polling started",
		logger.Duration("quotes_interval_ms", a.cfg.Polling.QuotesInterval),
		logger.Duration("status_interval_ms", a.cfg.Polling.StatusInterval),
	)

	if err := a.server.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.server.Err():
	}

	a.shutdown(poller)
	return runErr
}

func (a *App) shutdown(poller *usecase.Poller) {
	poller.Stop()
	poller.Wait()

	if a.hub != nil {
		a.hub.Close()
	}
	if err := a.server.Stop(context.Background()); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("snapshot sink close error", logger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
