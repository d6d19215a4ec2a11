// Package pool provides the bounded worker pools that execute judging
// and debugging jobs. Each pool has a fixed worker count and a hard
// queue cap; the admission gate is the primary throttle, the cap only
// guards against many distinct users submitting at once.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErr "efrog/pkg/errors"
	"efrog/pkg/utils/logger"

	"go.uber.org/zap"
)

// Handle tracks one submitted job. Callers either block on Wait or
// observe Done asynchronously.
type Handle struct {
	run  func(ctx context.Context) error
	done chan struct{}
	err  error
}

// Wait blocks until the job completes or ctx is done. It returns the
// job's error, or the context error if ctx wins.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the job completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the job's error. Valid only after Done is closed.
func (h *Handle) Err() error {
	return h.err
}

// Config sizes one pool.
type Config struct {
	Workers  int `yaml:"workers"`
	QueueCap int `yaml:"queueCap"`
}

// Pool runs jobs on a fixed set of workers in FIFO admission order.
// Jobs may complete out of order.
type Pool struct {
	name    string
	jobs    chan *Handle
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts a pool with the given worker count and queue cap.
func New(name string, cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueCap := cfg.QueueCap
	if queueCap <= 0 {
		queueCap = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:    name,
		jobs:    make(chan *Handle, queueCap),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit enqueues a job without blocking. It returns JudgeQueueFull
// when the queue cap is reached and ServiceUnavailable after Shutdown.
func (p *Pool) Submit(run func(ctx context.Context) error) (*Handle, error) {
	if run == nil {
		return nil, appErr.Newf(appErr.InvalidParams, "job is required")
	}
	h := &Handle{run: run, done: make(chan struct{})}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, appErr.Newf(appErr.ServiceUnavailable, "%s pool is shut down", p.name)
	}
	select {
	case p.jobs <- h:
		return h, nil
	default:
		return nil, appErr.Newf(appErr.JudgeQueueFull, "%s pool queue is full", p.name)
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs
// to finish, up to ctx's deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for h := range p.jobs {
		p.runJob(id, h)
	}
}

func (p *Pool) runJob(id int, h *Handle) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			h.err = appErr.Newf(appErr.JudgeSystemError, "job panicked: %v", r)
			logger.Error(p.baseCtx, "worker recovered from panic",
				zap.String("pool", p.name),
				zap.Int("worker", id),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	start := time.Now()
	h.err = h.run(p.baseCtx)
	if h.err != nil {
		logger.Warn(p.baseCtx, "job finished with error",
			zap.String("pool", p.name),
			zap.Int("worker", id),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(h.err))
	}
}
