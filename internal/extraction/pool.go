// Package extraction fans page-extraction work out over a bounded worker
// pool and reassembles results in document order.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned by Submit when the pool's queue is at capacity.
var ErrQueueFull = errors.New("extraction queue full")

// ErrPoolStopped is returned by Submit once the pool is shutting down.
var ErrPoolStopped = errors.New("extraction pool stopped")

// Pool is a fixed-size worker pool shared across concurrent document
// submissions. Capacity is a resource limit, not per-request: excess tasks
// queue instead of spawning workers.
type Pool struct {
	workers   int
	queue     chan func()
	logger    *slog.Logger
	startOnce sync.Once

	mu      sync.Mutex
	stopped bool
}

// PoolConfig configures a new Pool.
type PoolConfig struct {
	Workers   int // concurrent workers (default 10)
	QueueSize int // queued tasks beyond in-flight (default 100)
	Logger    *slog.Logger
}

// NewPool creates a pool. Start must be called before Submit.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		workers: cfg.Workers,
		queue:   make(chan func(), cfg.QueueSize),
		logger:  logger.With("component", "extraction-pool"),
	}
}

// Start launches the worker goroutines. When ctx is cancelled the pool
// stops accepting tasks and the workers run whatever is still queued
// before exiting, so waiters on in-flight batches are always released.
// Tasks carry their own request context for cancellation semantics.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.logger.Info("starting extraction workers", "count", p.workers)
		for i := 0; i < p.workers; i++ {
			go p.workerLoop(ctx, i)
		}
	})
}

func (p *Pool) workerLoop(ctx context.Context, workerNum int) {
	logger := p.logger.With("worker_num", workerNum)
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			p.drain()
			logger.Debug("worker stopping")
			return
		case task := <-p.queue:
			task()
		}
	}
}

// drain closes the pool for submissions, then runs the remaining queue.
// The stopped flag is flipped under the same lock Submit enqueues under,
// so a task is either rejected or picked up here; none are stranded.
func (p *Pool) drain() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	for {
		select {
		case task := <-p.queue:
			task()
		default:
			return
		}
	}
}

// Submit queues a task. Returns ErrQueueFull if the queue is at capacity
// and ErrPoolStopped once the pool is shutting down.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of queued tasks.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Workers returns the pool capacity.
func (p *Pool) Workers() int {
	return p.workers
}

// Batch groups a set of tasks submitted to the shared pool so a caller
// can wait for all of them. This is the submit + joinAll contract used by
// the coordinator's fan-in.
type Batch struct {
	pool *Pool
	wg   sync.WaitGroup
}

// NewBatch creates an empty batch on the pool.
func (p *Pool) NewBatch() *Batch {
	return &Batch{pool: p}
}

// Submit queues one task in the batch. On ErrQueueFull the task is not
// queued and does not count toward Wait.
func (b *Batch) Submit(task func()) error {
	b.wg.Add(1)
	err := b.pool.Submit(func() {
		defer b.wg.Done()
		task()
	})
	if err != nil {
		b.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every queued task in the batch has finished, success
// or failure.
func (b *Batch) Wait() {
	b.wg.Wait()
}
