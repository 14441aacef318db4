package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/hoffnungslabor/mediable/pkg/logger"
)

// serveWithContextLogger runs one request through RequestLogger, has the
// handler emit a line via the context logger, and decodes the line.
func serveWithContextLogger(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	base := logger.NewWithWriter("test-svc", "info", &buf)

	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handler line")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/post/42/media", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if buf.Len() == 0 {
		t.Fatal("handler logger produced no output")
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	return out
}

func TestRequestLogger_EnrichesFromRequestContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = logger.WithCorrelationID(ctx, "corr-777")

	out := serveWithContextLogger(t, ctx)

	if got := out["correlation_id"]; got != "corr-777" {
		t.Errorf("correlation_id = %v, want corr-777", got)
	}
	if got := out["trace_id"]; got != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("trace_id = %v, want the seeded trace", got)
	}
	if got := out["span_id"]; got != "b7ad6b7169203331" {
		t.Errorf("span_id = %v, want the seeded span", got)
	}
}

func TestRequestLogger_BareRequest(t *testing.T) {
	out := serveWithContextLogger(t, context.Background())

	for _, key := range []string{"correlation_id", "trace_id", "span_id"} {
		if _, ok := out[key]; ok {
			t.Errorf("%s should be absent on a bare request, got %v", key, out[key])
		}
	}
}
