package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestEmailMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEmailMetrics(reg)
	m.IncResult("order_receipt", ResultSent)
	m.IncResult("order_receipt", ResultSent)
	m.IncResult("admin_new_order", ResultDropped)
	m.ObserveSend("order_receipt", 120*time.Millisecond)
	m.SetDepth(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "email_tasks_total", map[string]string{"kind": "order_receipt", "result": ResultSent}); err != nil || got != 2 {
		t.Fatalf("expected sent=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "email_tasks_total", map[string]string{"kind": "admin_new_order", "result": ResultDropped}); err != nil || got != 1 {
		t.Fatalf("expected dropped=1, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "email_send_duration_seconds", map[string]string{"kind": "order_receipt"}); err != nil || got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f err=%v", got, err)
	}
	if mf := findMetricFamily(mfs, "email_queue_depth"); mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected depth gauge 3")
	}
}

func TestOutboxAndHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	outbox := NewOutboxMetrics(reg)
	httpm := NewHTTPMetrics(reg)

	outbox.IncPublished("order_created")
	outbox.IncFailed("order_created")
	outbox.IncDeadLettered("order_created", "max_attempts")
	httpm.Observe("POST", "/api/checkout", 201, 40*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "outbox_dead_lettered_total", map[string]string{"event_type": "order_created", "reason": "max_attempts"}); got != 1 {
		t.Fatalf("expected dead letter count 1, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "http_requests_total", map[string]string{"route": "/api/checkout", "status": "201"}); got != 1 {
		t.Fatalf("expected one request, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var email *EmailMetrics
	email.IncResult("x", ResultSent)
	email.ObserveSend("x", time.Second)
	email.SetDepth(1)

	NewOutboxMetrics(nil).IncPublished("x")
	NewHTTPMetrics(nil).Observe("GET", "", 200, time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestServeWithoutAddrReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "", prometheus.NewRegistry()) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
