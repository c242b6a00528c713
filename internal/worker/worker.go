// Package worker runs queued generation tasks.
package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryhan5/aicademy/internal/logger"
	"github.com/ryhan5/aicademy/internal/queue"
)

// TaskRunner executes one task; *generation.Service implements it.
type TaskRunner interface {
	RunTask(ctx context.Context, task queue.Task) error
}

// Pool runs a fixed number of consumer loops.
type Pool struct {
	consumer    queue.Consumer
	runner      TaskRunner
	concurrency int
	errBackoff  time.Duration
	log         *logger.Logger
}

func NewPool(consumer queue.Consumer, runner TaskRunner, concurrency int, log *logger.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{
		consumer:    consumer,
		runner:      runner,
		concurrency: concurrency,
		errBackoff:  time.Second,
		log:         log.With("component", "GenerationWorker"),
	}
}

// Run blocks until ctx is cancelled. Task failures are logged; they never stop the pool.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("starting generation worker pool", "concurrency", p.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			p.loop(gctx, workerID)
			return nil
		})
	}
	err := g.Wait()
	p.log.Info("generation worker pool stopped")
	return err
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := p.consumer.Receive(ctx)
		switch {
		case err == nil:
			p.handle(ctx, workerID, task)
		case errors.Is(err, queue.ErrEmpty):
		case ctx.Err() != nil:
			return
		default:
			p.log.Warn("receive failed", "worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.errBackoff):
			}
		}
	}
}

func (p *Pool) handle(ctx context.Context, workerID int, task queue.Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", "worker_id", workerID, "record_id", task.RecordID, "panic", r)
		}
	}()

	start := time.Now()
	if err := p.runner.RunTask(ctx, task); err != nil {
		p.log.Warn("task failed",
			"worker_id", workerID,
			"record_id", task.RecordID,
			"content_type", task.ContentType,
			"attempt", task.Attempt,
			"error", err,
		)
		return
	}
	p.log.Info("task done", "worker_id", workerID, "record_id", task.RecordID, "elapsed", time.Since(start).String())
}
