package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics backs a Metrics instance with a ManualReader so recorded
// values can be read back.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// histogramCount returns the sample count of the named histogram, failing the
// test when the metric is missing or of the wrong kind.
func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("histogram %q not recorded", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("%q is not a float64 histogram", name)
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}

// counterValue sums the named int64 counter across data points, optionally
// keeping only points carrying the given attribute.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, attrKey, attrVal string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("counter %q not recorded", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if attrKey != "" {
			match := false
			for _, kv := range dp.Attributes.ToSlice() {
				if string(kv.Key) == attrKey && kv.Value.AsString() == attrVal {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		total += dp.Value
	}
	return total
}

func TestPipelineHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ASRDuration.Record(ctx, 0.21)
	m.ASRDuration.Record(ctx, 0.34)
	m.TranslateDuration.Record(ctx, 0.12)
	m.BroadcastDuration.Record(ctx, 0.003)

	rm := collect(t, reader)
	wantCounts := map[string]uint64{
		"lectern.asr.duration":       2,
		"lectern.translate.duration": 1,
		"lectern.broadcast.duration": 1,
	}
	for name, want := range wantCounts {
		if got := histogramCount(t, rm, name); got != want {
			t.Errorf("%s sample count = %d, want %d", name, got, want)
		}
	}
}

func TestRecordSubtitleEvent(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSubtitleEvent(ctx, "realtime", "ok")
	m.RecordSubtitleEvent(ctx, "realtime", "ok")
	m.RecordSubtitleEvent(ctx, "realtime", "translate_failed")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "lectern.subtitle.events", "status", "ok"); got != 2 {
		t.Errorf("ok events = %d, want 2", got)
	}
	if got := counterValue(t, rm, "lectern.subtitle.events", "status", "translate_failed"); got != 1 {
		t.Errorf("translate_failed events = %d, want 1", got)
	}
}

func TestRecordPersistenceTask(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPersistenceTask(ctx, "append_utterance", "ok")
	m.RecordPersistenceTask(ctx, "update_translation", "error")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "lectern.persistence.tasks", "kind", "append_utterance"); got != 1 {
		t.Errorf("append_utterance tasks = %d, want 1", got)
	}
	if got := counterValue(t, rm, "lectern.persistence.tasks", "status", "error"); got != 1 {
		t.Errorf("errored tasks = %d, want 1", got)
	}
}

func TestRecordProviderError(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordProviderError(context.Background(), "baidu", "translate")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "lectern.provider.errors", "provider", "baidu"); got != 1 {
		t.Errorf("baidu provider errors = %d, want 1", got)
	}
}

func TestGaugesTrackUpAndDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveConnections.Add(ctx, 3)
	m.ActiveConnections.Add(ctx, -1)
	m.ActiveRooms.Add(ctx, 1)
	m.QueueDepth.Add(ctx, 4)
	m.QueueDepth.Add(ctx, -4)

	rm := collect(t, reader)
	wantValues := map[string]int64{
		"lectern.active_connections": 2,
		"lectern.active_rooms":       1,
		"lectern.queue_depth":        0,
	}
	for name, want := range wantValues {
		if got := counterValue(t, rm, name, "", ""); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
