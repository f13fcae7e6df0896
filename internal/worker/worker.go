// Package worker provides a bounded in-process task queue for deferred
// work, such as replying to webhook events after the HTTP handler has
// already acknowledged them.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Task is a unit of deferred work. The context carries the per-task
// timeout; tasks should respect it.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines. Submission is
// non-blocking: when the queue is full the task is rejected rather than
// stalling the submitter.
type Pool struct {
	tasks       chan Task
	workers     int
	taskTimeout time.Duration
	logger      *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// Config holds configuration for the pool.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Logger      *slog.Logger
}

// NewPool creates a pool; call Start before submitting.
func NewPool(config Config) *Pool {
	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	timeout := config.TaskTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		tasks:       make(chan Task, queueSize),
		workers:     workers,
		taskTimeout: timeout,
		logger:      logger,
	}
}

// Start launches the worker goroutines. Workers run until Shutdown closes
// the queue; the passed context is the base context for every task.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.execute(ctx, id, task)
	}
}

func (p *Pool) execute(ctx context.Context, id int, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	task(taskCtx)
}

// Submit enqueues a task. Returns false when the queue is full or the pool
// has shut down.
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued work to drain, up to
// the context deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("worker pool shutdown timed out with tasks still running")
	}
}
