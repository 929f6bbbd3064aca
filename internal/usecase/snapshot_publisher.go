package usecase

import (
	"context"
	"sync"
	"time"

	"MarketSync/internal/domain/models"
	"MarketSync/internal/domain/repository"
	"MarketSync/pkg/logger"
)

// SnapshotPublisher forwards applied snapshots to a sink off the poll path.
// When the sink falls behind, the oldest queued snapshot is dropped.
type SnapshotPublisher struct {
	sink    repository.SnapshotSink
	metrics repository.Metrics
	log     *logger.Logger
	queue   chan *models.Snapshot
	timeout time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	stopCh  chan struct{}
	done    chan struct{}
}

type PublisherOption func(*SnapshotPublisher)

func WithQueueSize(n int) PublisherOption {
	return func(p *SnapshotPublisher) {
		if n > 0 {
			p.queue = make(chan *models.Snapshot, n)
		}
	}
}

func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *SnapshotPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewSnapshotPublisher(sink repository.SnapshotSink, metrics repository.Metrics, log *logger.Logger, opts ...PublisherOption) *SnapshotPublisher {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	p := &SnapshotPublisher{
		sink:    sink,
		metrics: metrics,
		log:     log,
		queue:   make(chan *models.Snapshot, 16),
		timeout: 10 * time.Second,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue never blocks.
func (p *SnapshotPublisher) Enqueue(snap *models.Snapshot) {
	if snap == nil || p.sink == nil {
		return
	}
	for {
		select {
		case p.queue <- snap:
			return
		default:
		}
		select {
		case <-p.queue:
			p.metrics.RecordError("sink_queue_drop")
		default:
		}
	}
}

// Start launches the worker. Calling it twice is a no-op.
func (p *SnapshotPublisher) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed || p.sink == nil {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case snap := <-p.queue:
				if err := p.publish(ctx, snap); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					case <-ctx.Done():
						return
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

func (p *SnapshotPublisher) publish(ctx context.Context, snap *models.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.sink.Publish(ctx, snap)
	p.metrics.RecordSinkPublish(p.sink.Name(), len(snap.Records), err)
	if err != nil {
		p.log.Error("publish snapshot failed",
			logger.String("sink", p.sink.Name()),
			logger.Int("records", len(snap.Records)),
			logger.Error(err),
		)
	}
	return err
}

// Close stops the worker and closes the sink.
func (p *SnapshotPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	started := p.started
	p.started = false
	p.closed = true
	p.mu.Unlock()

	if started {
		close(p.stopCh)
		<-p.done
	}
	if p.sink != nil {
		return p.sink.Close()
	}
	return nil
}
