package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	tests := []struct {
		method, pattern, path string
	}{
		{http.MethodPost, "/functions/v1/google-tts", "/functions/v1/google-tts"},
		{http.MethodPost, "/v1/characters/{id}/speech", "/v1/characters/luna/speech"},
		{http.MethodGet, "/v1/calls/{characterID}", "/v1/calls/vale"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			useTestTracer(t)
			m, reader := newTestMetrics(t)

			r := chi.NewRouter()
			r.Use(Middleware(m))
			r.MethodFunc(tt.method, tt.pattern, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			met := findMetric(collect(t, reader), "voxpal.http.request.duration")
			if met == nil {
				t.Fatal("duration not recorded")
			}
			hist := met.Data.(metricdata.Histogram[float64])
			if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Fatalf("data points = %+v, want one sample", hist.DataPoints)
			}
			attrs := hist.DataPoints[0].Attributes
			if v, _ := attrs.Value("route"); v.AsString() != tt.pattern {
				t.Errorf("route = %q, want %q", v.AsString(), tt.pattern)
			}
			if v, _ := attrs.Value("method"); v.AsString() != tt.method {
				t.Errorf("method = %q, want %q", v.AsString(), tt.method)
			}
		})
	}
}

func TestMiddleware_UnroutedFallsBackToPath(t *testing.T) {
	useTestTracer(t)
	m, reader := newTestMetrics(t)

	h := Middleware(m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))

	hist := findMetric(collect(t, reader), "voxpal.http.request.duration").Data.(metricdata.Histogram[float64])
	if v, _ := hist.DataPoints[0].Attributes.Value("route"); v.AsString() != "/readyz" {
		t.Errorf("route = %q, want /readyz", v.AsString())
	}
}

func TestMiddleware_TraceAndStatus(t *testing.T) {
	exp := useTestTracer(t)
	m, _ := newTestMetrics(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/elevenlabs-tts", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("handler trace id = %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
	if rec.Header().Get("traceparent") == "" {
		t.Error("traceparent not injected into the response")
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "HTTP POST /functions/v1/elevenlabs-tts" {
		t.Errorf("span name = %q", s.Name)
	}
	var status int64
	for _, a := range s.Attributes {
		if a.Key == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusTooManyRequests {
		t.Errorf("span status code = %d, want 429", status)
	}
}

func TestMiddleware_RequestID(t *testing.T) {
	useTestTracer(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/voices", nil))
	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("generated request id = %q, want a uuid", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/voices", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("request id = %q, want echoed abc", got)
	}
}

func TestMiddleware_ResponseControllerReachesWriter(t *testing.T) {
	useTestTracer(t)
	m, _ := newTestMetrics(t)

	var flushErr error
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flushErr = http.NewResponseController(w).Flush()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/calls/luna", nil))

	if flushErr != nil {
		t.Errorf("Flush through middleware: %v", flushErr)
	}
	if !rec.Flushed {
		t.Error("recorder was not flushed")
	}
}
