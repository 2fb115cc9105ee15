package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stmary/giftshop-backend/pkg/logger"
)

type blockingConsumer struct {
	err error
}

func (c blockingConsumer) Run(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeQueue struct {
	mu       sync.Mutex
	started  bool
	closed   bool
	closeErr error
}

func (q *fakeQueue) Start(context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = true
}

func (q *fakeQueue) Close(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return q.closeErr
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newWorker(t *testing.T, c consumer, q emailQueue, deps map[string]pinger) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:       logger.Nop(),
		Dependencies: deps,
		Consumer:     c,
		Queue:        q,
		DrainTimeout: time.Second,
	})
	require.NoError(t, err)
	return svc
}

func TestRunDrainsQueueOnShutdown(t *testing.T) {
	q := &fakeQueue{}
	svc := newWorker(t, blockingConsumer{}, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.True(t, q.started)
	require.True(t, q.closed)
}

func TestRunReportsConsumerAndDrainFailures(t *testing.T) {
	q := &fakeQueue{closeErr: context.DeadlineExceeded}
	svc := newWorker(t, blockingConsumer{err: errors.New("subscription gone")}, q, nil)

	err := svc.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "subscription gone")
	require.Contains(t, err.Error(), "drain email queue")
	require.True(t, q.closed)
}

func TestRunStopsWhenDependencyIsDown(t *testing.T) {
	q := &fakeQueue{}
	svc := newWorker(t, blockingConsumer{}, q, map[string]pinger{"redis": stubPinger{err: errors.New("refused")}})

	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "redis ping failed")
	require.False(t, q.started)
}
