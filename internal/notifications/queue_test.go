package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stmary/giftshop-backend/pkg/metrics"
)

type recordingMailer struct {
	mu    sync.Mutex
	sent  []Email
	fail  map[string]bool
	block chan struct{}
}

func (m *recordingMailer) Send(_ context.Context, email Email) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[email.To] {
		return errors.New("provider rejected")
	}
	m.sent = append(m.sent, email)
	return nil
}

func TestQueueSendsAndCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	em := metrics.NewEmailMetrics(reg)
	mailer := &recordingMailer{fail: map[string]bool{"bounce@example.com": true}}
	q, err := NewQueue(QueueParams{Mailer: mailer, Workers: 2, BufferSize: 8, Metrics: em})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	ctx := context.Background()
	q.Start(ctx)

	q.Enqueue(ctx, Task{Kind: KindOrderReceipt, Email: Email{To: "a@example.com"}})
	q.Enqueue(ctx, Task{Kind: KindOrderReceipt, Email: Email{To: "bounce@example.com"}})

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one delivered email, got %d", len(mailer.sent))
	}
	if got := testutil.ToFloat64(em.Tasks().WithLabelValues(KindOrderReceipt, metrics.ResultSent)); got != 1 {
		t.Fatalf("expected one sent, got %v", got)
	}
	if got := testutil.ToFloat64(em.Tasks().WithLabelValues(KindOrderReceipt, metrics.ResultFailed)); got != 1 {
		t.Fatalf("expected one failed, got %v", got)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	em := metrics.NewEmailMetrics(reg)
	mailer := &recordingMailer{block: make(chan struct{})}
	q, _ := NewQueue(QueueParams{Mailer: mailer, Workers: 1, BufferSize: 1, Metrics: em})
	ctx := context.Background()

	// No workers yet, so the single slot fills up.
	if !q.Enqueue(ctx, Task{Kind: KindOrderStatus, Email: Email{To: "a@example.com"}}) {
		t.Fatalf("first task should be accepted")
	}
	if q.Enqueue(ctx, Task{Kind: KindOrderStatus, Email: Email{To: "b@example.com"}}) {
		t.Fatalf("second task should be dropped")
	}
	if got := testutil.ToFloat64(em.Tasks().WithLabelValues(KindOrderStatus, metrics.ResultDropped)); got != 1 {
		t.Fatalf("expected one dropped, got %v", got)
	}

	q.Start(ctx)
	close(mailer.block)
	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if q.Enqueue(ctx, Task{Kind: KindOrderStatus}) {
		t.Fatalf("closed queue must reject tasks")
	}
}
