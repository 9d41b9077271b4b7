package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

func metricNames(rm metricdata.ResourceMetrics) map[string]bool {
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestNewMetrics_RecordsInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.AudioSends.Add(ctx, 3)
	m.RateLimitRejections.Add(ctx, 1)
	m.Interruptions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.RecordSyncOutcome(ctx, "synced")
	m.RecordTurn(ctx, 2*time.Second)
	m.RecordSyncDelivery(ctx, 50*time.Millisecond)

	names := metricNames(collect(t, reader))
	for _, want := range []string{
		"voxtale.audio.sends",
		"voxtale.ratelimit.rejections",
		"voxtale.session.interruptions",
		"voxtale.active_sessions",
		"voxtale.sync.outcomes",
		"voxtale.turn.duration",
		"voxtale.sync.delivery.duration",
	} {
		if !names[want] {
			t.Errorf("metric %q was not recorded", want)
		}
	}
}

func TestDefaultMetrics_SingleInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
