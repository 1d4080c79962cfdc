package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// testSetup installs a recording tracer and returns metrics backed by a
// manual reader.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)
	tp, exp := newTestTracerProvider(t)
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return m, reader, exp
}

// serve sends req through the middleware around h and returns the recorder
// and the correlation ID h saw.
func serve(m *Metrics, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, string) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
		h.ServeHTTP(w, r)
	})
	rec := httptest.NewRecorder()
	Middleware(m)(inner).ServeHTTP(rec, req)
	return rec, seen
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestMiddleware_CorrelationID(t *testing.T) {
	m, _, _ := testSetup(t)

	t.Run("trace id", func(t *testing.T) {
		rec, cid := serve(m, okHandler, httptest.NewRequest(http.MethodGet, "/api/tts", nil))
		if len(cid) != 32 {
			t.Errorf("correlation ID = %q, want a 32-char trace ID", cid)
		}
		if got := rec.Header().Get(HeaderCorrelationID); got != cid {
			t.Errorf("response %s = %q, want %q", HeaderCorrelationID, got, cid)
		}
	})

	t.Run("incoming traceparent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tts", nil)
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		rec, cid := serve(m, okHandler, req)
		if cid != "4bf92f3577b34da6a3ce929d0e0e4736" {
			t.Errorf("correlation ID = %q, want the incoming trace ID", cid)
		}
		if got := rec.Header().Get("traceparent"); got == "" {
			t.Error("response has no traceparent")
		}
	})

	t.Run("client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tts", nil)
		req.Header.Set(HeaderCorrelationID, "web-reader.42")
		rec, cid := serve(m, okHandler, req)
		if cid != "web-reader.42" || rec.Header().Get(HeaderCorrelationID) != "web-reader.42" {
			t.Errorf("correlation ID = %q, header %q, want the client ID", cid, rec.Header().Get(HeaderCorrelationID))
		}
	})

	t.Run("malformed client id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tts", nil)
		req.Header.Set(HeaderCorrelationID, "bad id\nInjected: yes")
		_, cid := serve(m, okHandler, req)
		if len(cid) != 32 {
			t.Errorf("correlation ID = %q, want the trace ID", cid)
		}
	})
}

func TestMiddleware_GeneratesIDWithoutTracer(t *testing.T) {
	m, _ := newTestMetrics(t)
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(noop.NewTracerProvider())
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	rec, cid := serve(m, okHandler, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(cid) != 36 {
		t.Errorf("correlation ID = %q, want a UUID", cid)
	}
	if got := rec.Header().Get(HeaderCorrelationID); got != cid {
		t.Errorf("response %s = %q, want %q", HeaderCorrelationID, got, cid)
	}
}

func TestMiddleware_Span(t *testing.T) {
	m, _, exp := testSetup(t)
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })

	rec, _ := serve(m, notFound, httptest.NewRequest(http.MethodGet, "/api/history/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /api/history/missing" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var status int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusNotFound {
		t.Errorf("span status code = %d, want 404", status)
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	m, reader, _ := testSetup(t)
	mux := http.NewServeMux()
	mux.Handle("GET /api/history/{id}", okHandler)

	for _, path := range []string{"/api/history/a", "/api/history/b", "/nowhere"} {
		rec := httptest.NewRecorder()
		Middleware(m)(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	met := findMetric(collect(t, reader), "claire.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	counts := map[string]uint64{}
	for _, dp := range met.Data.(metricdata.Histogram[float64]).DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("route"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		counts[route.AsString()+" "+status.AsString()] += dp.Count
	}
	if counts["GET /api/history/{id} 2xx"] != 2 {
		t.Errorf("history samples = %v, want 2 under the route pattern", counts)
	}
	if counts["unmatched 4xx"] != 1 {
		t.Errorf("unmatched samples = %v, want 1", counts)
	}
}

func TestMiddleware_ForwardsFlush(t *testing.T) {
	m, _, _ := testSetup(t)
	stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Error("wrapped writer does not implement http.Flusher")
			return
		}
		_, _ = w.Write([]byte("event: ping\n\n"))
		f.Flush()
	})

	rec, _ := serve(m, stream, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if !rec.Flushed {
		t.Error("Flushed = false, want true")
	}
}

func TestStatusClass(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 204: "2xx", 429: "4xx", 502: "5xx"} {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
