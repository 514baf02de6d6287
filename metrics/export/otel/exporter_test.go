package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/jwtsession"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[jwtsession.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() jwtsession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := jwtsession.MetricsSnapshot{
		Counters:   make(map[jwtsession.MetricID]uint64, len(f.counters)),
		Histograms: map[jwtsession.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency != nil {
		out.Histograms[jwtsession.MetricVerifyLatency] = append([]uint64(nil), f.latency...)
	}
	return out
}

func (f *fakeSource) ReportDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterPublishesSnapshot(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{
		counters: map[jwtsession.MetricID]uint64{jwtsession.MetricSessionCreated: 3},
		latency:  []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped:  1,
	}

	exp, err := NewExporterFromSource(provider.Meter("jwtsession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	got := collect(t, reader)
	if got["jwtsession_session_created_total"] != 3 {
		t.Fatalf("session_created: got %d", got["jwtsession_session_created_total"])
	}
	if got["jwtsession_report_dropped_total"] != 1 {
		t.Fatalf("report_dropped: got %d", got["jwtsession_report_dropped_total"])
	}
	if got["jwtsession_verify_latency_seconds_bucket_le_0_001"] != 1 {
		t.Fatalf("first bucket: got %d", got["jwtsession_verify_latency_seconds_bucket_le_0_001"])
	}
	if got["jwtsession_verify_latency_seconds_bucket_le_inf"] != 8 {
		t.Fatalf("inf bucket: got %d", got["jwtsession_verify_latency_seconds_bucket_le_inf"])
	}
	if got["jwtsession_verify_latency_seconds_count"] != 8 {
		t.Fatalf("count: got %d", got["jwtsession_verify_latency_seconds_count"])
	}
}

func TestExporterStopsAfterClose(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{counters: map[jwtsession.MetricID]uint64{jwtsession.MetricAuthSuccess: 5}}

	exp, err := NewExporterFromSource(provider.Meter("jwtsession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := collect(t, reader); got["jwtsession_auth_success_total"] != 0 {
		t.Fatalf("expected no observation after close, got %d", got["jwtsession_auth_success_total"])
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader(t)
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporterFromSource(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{counters: map[jwtsession.MetricID]uint64{jwtsession.MetricAuthSuccess: 1}}

	exp, err := NewExporterFromSource(provider.Meter("jwtsession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[jwtsession.MetricAuthSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
