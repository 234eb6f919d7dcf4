// Package worker runs pools of goroutines that drain a queue through a handler.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/elove/pkg/logger"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Handler processes one item. A returned error is logged and counted; it
// does not stop the worker.
type Handler[T any] func(ctx context.Context, item T) error

// Source defines how workers receive items.
type Source[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Worker processes items until its source is drained or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the item in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over a Source.
type InMemoryWorker[T any] struct {
	items  <-chan T
	handle Handler[T]
	name   string

	processed *atomic.Int64
	failed    *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from items.
func NewInMemoryWorker[T any](items <-chan T, handle Handler[T], opts ...Option) *InMemoryWorker[T] {
	s := settings{name: "worker"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("worker")
	}
	if s.name != "worker" {
		s.logger = s.logger.Named(s.name)
	}

	return &InMemoryWorker[T]{
		items:     items,
		handle:    handle,
		name:      s.name,
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    s.logger,
	}
}

// Run starts the worker loop.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-w.items:
			if !ok {
				return
			}
			w.process(ctx, item)
		}
	}
}

func (w *InMemoryWorker[T]) process(ctx context.Context, item T) {
	start := time.Now()
	err := w.handle(ctx, item)
	w.processed.Add(1)
	if err != nil {
		w.failed.Add(1)
		w.logger.Debug(ctx, "item failed",
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages multiple workers sharing one source.
type Pool[T any] struct {
	workers []*InMemoryWorker[T]
	source  Source[T]
	handle  Handler[T]
	opts    []Option

	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A count below one selects twice the CPU count.
func NewPool[T any](workerCount int, source Source[T], handle Handler[T], opts ...Option) *Pool[T] {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	return &Pool[T]{
		workers: make([]*InMemoryWorker[T], workerCount),
		source:  source,
		handle:  handle,
		opts:    opts,
		logger:  logger.Get().Named("worker-pool"),
	}
}

// Start starts all workers in the pool.
func (p *Pool[T]) Start(ctx context.Context) {
	items := p.source.Dequeue(ctx)
	for i := range p.workers {
		opts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, p.opts...)
		w := NewInMemoryWorker(items, p.handle, opts...)
		w.processed = &p.processed
		w.failed = &p.failed
		p.workers[i] = w
		go w.Run(ctx)
	}
	p.logger.Debug(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Wait blocks until every worker has exited, which happens once the source
// is closed and drained or the run context is cancelled.
func (p *Pool[T]) Wait() {
	for _, w := range p.workers {
		if w != nil {
			<-w.done
		}
	}
}

// Processed returns the number of items handled, successful or not.
func (p *Pool[T]) Processed() int64 { return p.processed.Load() }

// Failed returns the number of items whose handler returned an error.
func (p *Pool[T]) Failed() int64 { return p.failed.Load() }

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return len(p.workers) }

// Shutdown closes the source if it can be closed and stops all workers.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if w == nil {
			continue
		}
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
