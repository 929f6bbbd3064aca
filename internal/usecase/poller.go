package usecase

import (
	"context"
	"sync"
	"time"

	"MarketSync/internal/domain/repository"
	"MarketSync/pkg/logger"
)

// Loop describes one periodic fetch. Fetch runs on every firing in its own
// goroutine; Deliver receives results in arrival order and never after Stop.
type Loop[T any] struct {
	Name    string
	Period  time.Duration
	Fetch   func(ctx context.Context) T
	Deliver func(T)
}

// LoopHandle controls a running loop.
type LoopHandle struct {
	name   string
	cancel context.CancelFunc

	mu      sync.Mutex // serialises Deliver and Stop
	stopped bool

	ticker   sync.WaitGroup
	inflight sync.WaitGroup
}

// StartLoop fires loop.Fetch immediately and then every loop.Period of wall
// clock time, regardless of how long earlier fetches take.
func StartLoop[T any](ctx context.Context, loop Loop[T], log *logger.Logger, metrics repository.Metrics) *LoopHandle {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &LoopHandle{name: loop.Name, cancel: cancel}

	fire := func() {
		metrics.RecordPollTick(loop.Name)
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			v := loop.Fetch(ctx)

			h.mu.Lock()
			defer h.mu.Unlock()
			if h.stopped {
				log.Debug("discarding late result", logger.String("loop", loop.Name))
				return
			}
			loop.Deliver(v)
		}()
	}

	h.ticker.Add(1)
	go func() {
		defer h.ticker.Done()
		t := time.NewTicker(loop.Period)
		defer t.Stop()

		fire()
		for {
			select {
			case <-ctx.Done():
				h.markStopped()
				return
			case <-t.C:
				if ctx.Err() != nil {
					h.markStopped()
					return
				}
				fire()
			}
		}
	}()

	log.Info("poll loop started", logger.String("loop", loop.Name), logger.Duration("period_ms", loop.Period))
	return h
}

func (h *LoopHandle) markStopped() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Stop prevents further firings and drops results of fetches still in flight.
// It is safe to call more than once.
func (h *LoopHandle) Stop() {
	h.markStopped()
	h.cancel()
}

func (h *LoopHandle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.stopped
}

// Wait blocks until the ticker goroutine and every dispatched fetch have returned.
func (h *LoopHandle) Wait() {
	h.ticker.Wait()
	h.inflight.Wait()
}

func (h *LoopHandle) Name() string { return h.name }

// StatusSource is what the status loop needs from the market API.
type StatusSource interface {
	MarketStatus(ctx context.Context) (string, error)
}

// PollSource is everything the two loops fetch.
type PollSource interface {
	MergeSource
	StatusSource
}

type PollerConfig struct {
	QuotesInterval time.Duration
	StatusInterval time.Duration
}

// Poller owns the quotes loop and the status loop of one view.
type Poller struct {
	quotes *LoopHandle
	status *LoopHandle
}

type statusResult struct {
	status string
	err    error
}

// StartPoller starts both loops feeding view. The caller must Stop the
// returned Poller on every exit path.
func StartPoller(ctx context.Context, src PollSource, view *MarketView, cfg PollerConfig, log *logger.Logger, metrics repository.Metrics) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	p := &Poller{}

	p.quotes = StartLoop(ctx, Loop[MergeResult]{
		Name:   "quotes",
		Period: cfg.QuotesInterval,
		Fetch: func(ctx context.Context) MergeResult {
			return FetchMerged(ctx, src)
		},
		Deliver: func(res MergeResult) {
			if res.Err != nil {
				log.Warn("quotes tick degraded",
					logger.Bool("quotes_ok", res.QuotesOK),
					logger.Bool("predictions_ok", res.PredictionsOK),
					logger.Error(res.Err),
				)
			}
			view.ApplyMerge(res)
		},
	}, log, metrics)

	p.status = StartLoop(ctx, Loop[statusResult]{
		Name:   "status",
		Period: cfg.StatusInterval,
		Fetch: func(ctx context.Context) statusResult {
			s, err := src.MarketStatus(ctx)
			return statusResult{status: s, err: err}
		},
		Deliver: func(r statusResult) {
			view.ApplyStatus(r.status, r.err == nil && r.status != "")
		},
	}, log, metrics)

	return p
}

func (p *Poller) Stop() {
	p.quotes.Stop()
	p.status.Stop()
}

func (p *Poller) Wait() {
	p.quotes.Wait()
	p.status.Wait()
}
