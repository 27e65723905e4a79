package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of background work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a single job. A non-nil error triggers a retry up to the
// queue's limit.
type Handler func(context.Context, Job) error

// QueueConfig tunes the worker pool. Zero values fall back to sane defaults.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Queue is an in-process job dispatcher backed by a buffered channel and a
// fixed worker pool. It offers no durability; anything queued is lost on
// shutdown.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig

	jobs chan Job

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewQueue builds a queue that feeds jobs to handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	q.cfg.Logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.cfg.Workers)
}

// Stop cancels the workers and blocks until they exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.cfg.Logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue submits a job, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx, started := q.ctx, q.started
	q.mu.Unlock()
	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}

	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.process(job)
		}
	}
}

// process retries the job in place with a fixed delay between attempts, so a
// flapping handler does not flood the buffer with requeued copies.
func (q *Queue) process(job Job) {
	log := q.cfg.Logger.Sugar()
	for {
		err := q.handler(q.ctx, job)
		if err == nil {
			return
		}
		job.Attempt++
		if job.Attempt > q.cfg.MaxRetries {
			log.Errorw("job exceeded retries",
				"queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
			return
		}
		log.Warnw("job failed, retrying",
			"queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

		select {
		case <-q.ctx.Done():
			return
		case <-time.After(q.cfg.RetryDelay):
		}
	}
}
