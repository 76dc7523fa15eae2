package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func serveThrough(t *testing.T, m *Metrics, target string, h http.HandlerFunc, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	Middleware(m)(h).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_CorrelationHeaderMatchesContext(t *testing.T) {
	installTracing(t)
	m, _ := newTestMetrics(t)

	var inHandler string
	rec := serveThrough(t, m, "/api/lectures", func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r.Context())
	}, nil)

	if len(inHandler) != 32 {
		t.Fatalf("handler saw correlation ID %q, want a 32-hex trace ID", inHandler)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != inHandler {
		t.Errorf("X-Correlation-ID = %q, handler saw %q", got, inHandler)
	}
}

func TestMiddleware_SpanPerRequest(t *testing.T) {
	exp := installTracing(t)
	m, _ := newTestMetrics(t)

	serveThrough(t, m, "/api/lectures", func(w http.ResponseWriter, r *http.Request) {}, nil)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /api/lectures" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /api/lectures")
	}
}

func TestMiddleware_SpanRecordsStatusCode(t *testing.T) {
	exp := installTracing(t)
	m, _ := newTestMetrics(t)

	rec := serveThrough(t, m, "/api/lectures/999", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" {
			if a.Value.AsInt64() != 404 {
				t.Errorf("status attribute = %d, want 404", a.Value.AsInt64())
			}
			return
		}
	}
	t.Error("span has no http.response.status_code attribute")
}

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	installTracing(t)
	m, reader := newTestMetrics(t)

	serveThrough(t, m, "/api/lectures", func(w http.ResponseWriter, r *http.Request) {}, nil)

	rm := collect(t, reader)
	met := findMetric(rm, "lectern.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("request duration metric is not a histogram")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	var method, path string
	for _, kv := range dp.Attributes.ToSlice() {
		switch string(kv.Key) {
		case "method":
			method = kv.Value.AsString()
		case "path":
			path = kv.Value.AsString()
		}
	}
	if method != "GET" || path != "/api/lectures" {
		t.Errorf("attributes method=%q path=%q, want GET /api/lectures", method, path)
	}
}

func TestMiddleware_JoinsIncomingTrace(t *testing.T) {
	installTracing(t)
	m, _ := newTestMetrics(t)

	const upstream = "8c2f01cc3a9e44d5b1a2e3f405162738"
	hdr := http.Header{}
	hdr.Set("traceparent", "00-"+upstream+"-00f067aa0ba902b7-01")

	var inHandler string
	rec := serveThrough(t, m, "/api/lectures", func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r.Context())
	}, hdr)

	if inHandler != upstream {
		t.Errorf("handler trace ID = %q, want the upstream trace %q", inHandler, upstream)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != upstream {
		t.Errorf("X-Correlation-ID = %q, want %q", got, upstream)
	}
}
