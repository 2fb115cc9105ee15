package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/metrics"
)

const sendTimeout = 20 * time.Second

// Task is one email to send. Kind labels metrics and logs.
type Task struct {
	Kind  string
	Email Email
}

// Queue is a bounded in-process email queue served by a fixed worker pool.
// Each task is attempted once; failures are logged and counted.
type Queue struct {
	mailer  Mailer
	tasks   chan Task
	workers int
	metrics *metrics.EmailMetrics
	logg    *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// QueueParams configures a Queue.
type QueueParams struct {
	Mailer     Mailer
	Workers    int
	BufferSize int
	Metrics    *metrics.EmailMetrics
	Logger     *logger.Logger
}

func NewQueue(params QueueParams) (*Queue, error) {
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if params.Workers <= 0 {
		params.Workers = 1
	}
	if params.BufferSize <= 0 {
		params.BufferSize = 64
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Queue{
		mailer:  params.Mailer,
		tasks:   make(chan Task, params.BufferSize),
		workers: params.Workers,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Start launches the workers. They exit once Close drains the buffer.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

// Enqueue never blocks; it reports false when the task was dropped.
func (q *Queue) Enqueue(ctx context.Context, task Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(ctx, task, "email queue closed")
		return false
	}
	select {
	case q.tasks <- task:
		q.metrics.SetDepth(len(q.tasks))
		return true
	default:
		q.drop(ctx, task, "email queue full")
		return false
	}
}

// Close stops intake and waits for queued tasks to finish or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for task := range q.tasks {
		q.metrics.SetDepth(len(q.tasks))
		q.send(context.WithoutCancel(ctx), task)
	}
}

func (q *Queue) send(ctx context.Context, task Task) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	logCtx := q.logg.WithFields(ctx, map[string]any{"email_kind": task.Kind, "to": task.Email.To})

	started := time.Now()
	err := q.mailer.Send(ctx, task.Email)
	q.metrics.ObserveSend(task.Kind, time.Since(started))
	if err != nil {
		q.metrics.IncResult(task.Kind, metrics.ResultFailed)
		q.logg.Error(logCtx, "email send failed", err)
		return
	}
	q.metrics.IncResult(task.Kind, metrics.ResultSent)
	q.logg.Info(logCtx, "email sent")
}

func (q *Queue) drop(ctx context.Context, task Task, reason string) {
	q.metrics.IncResult(task.Kind, metrics.ResultDropped)
	q.logg.Warn(q.logg.WithFields(ctx, map[string]any{"email_kind": task.Kind, "to": task.Email.To}), reason)
}
