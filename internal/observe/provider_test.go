package observe

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newViewMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithView(Views()...))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func histogramBounds(t *testing.T, rm metricdata.ResourceMetrics, name string) []float64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("%s not recorded", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatalf("%s: no histogram data", name)
	}
	return hist.DataPoints[0].Bounds
}

func TestViews_HistogramBuckets(t *testing.T) {
	m, reader := newViewMetrics(t)
	ctx := context.Background()

	// A voice call websocket that stayed open for three minutes.
	m.HTTPRequestDuration.Record(ctx, 180, metric.WithAttributes(
		attribute.String("method", "GET"), attribute.String("route", "/v1/calls/{characterID}")))
	m.TTSDuration.Record(ctx, 1.2, metric.WithAttributes(attribute.String("provider", "google")))

	rm := collect(t, reader)
	if got := histogramBounds(t, rm, "voxpal.http.request.duration"); !slices.Equal(got, httpBuckets) {
		t.Errorf("http bounds = %v, want %v", got, httpBuckets)
	}
	if got := histogramBounds(t, rm, "voxpal.tts.duration"); !slices.Equal(got, latencyBuckets) {
		t.Errorf("tts bounds = %v, want %v", got, latencyBuckets)
	}
}

func TestViews_ProviderAttributesBounded(t *testing.T) {
	m, reader := newViewMetrics(t)
	ctx := context.Background()

	for _, v := range []string{"eleven-valentina", "eleven-mateo"} {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", "elevenlabs"),
			attribute.String("kind", "credential"),
			attribute.String("voice", v),
		))
	}

	met := findMetric(collect(t, reader), "voxpal.provider.errors")
	if met == nil {
		t.Fatal("voxpal.provider.errors not recorded")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1 after dropping the voice attribute", len(sum.DataPoints))
	}
	dp := sum.DataPoints[0]
	if dp.Value != 2 {
		t.Errorf("value = %d, want 2", dp.Value)
	}
	if _, ok := dp.Attributes.Value("voice"); ok {
		t.Error("voice attribute survived the view")
	}
	if v, _ := dp.Attributes.Value("kind"); v.AsString() != "credential" {
		t.Errorf("kind = %q, want credential", v.AsString())
	}
}

func TestInitProvider_ExportsToRegistry(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	reg := prometheus.NewRegistry()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "1.2.3",
		Environment:    "test",
		InstanceID:     "replica-1",
		Registerer:     reg,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.CacheLookups.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", "hit")))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var sawLookups, sawInstance bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "voxpal_cache_lookups") {
			sawLookups = true
		}
		if mf.GetName() != "target_info" {
			continue
		}
		for _, mm := range mf.GetMetric() {
			for _, l := range mm.GetLabel() {
				if l.GetName() == "service_instance_id" && l.GetValue() == "replica-1" {
					sawInstance = true
				}
			}
		}
	}
	if !sawLookups {
		t.Error("cache lookups not exported")
	}
	if !sawInstance {
		t.Error("target_info missing service_instance_id=replica-1")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitProvider_RejectsSampleRatio(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.5} {
		if _, err := InitProvider(context.Background(), ProviderConfig{SampleRatio: ratio, Registerer: prometheus.NewRegistry()}); err == nil {
			t.Errorf("SampleRatio %v: expected error", ratio)
		}
	}
}
