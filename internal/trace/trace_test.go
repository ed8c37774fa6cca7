package trace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestGenerateIDs(t *testing.T) {
	if id := generateTraceID(); len(id) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(id))
	}
	if id := generateSpanID(); len(id) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(id))
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateTraceID()
		if seen[id] {
			t.Error("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}

	_, tc2 := EnsureContext(ctx)
	if tc2.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestSpanNested(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "pipeline_run")
	_, child := StartSpan(ctx, "transcribe")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestSpanEndLogs(t *testing.T) {
	buf := captureLogs(t)

	_, span := StartSpan(context.Background(), "diarize")
	span.SetAttr("turns", 4)
	span.End()

	out := buf.String()
	if !strings.Contains(out, "span finished") || !strings.Contains(out, "span.name=diarize") {
		t.Errorf("unexpected log output: %s", out)
	}
	if !strings.Contains(out, "span.turns=4") {
		t.Errorf("span attributes missing from log: %s", out)
	}
	if span.Duration() < 0 {
		t.Error("span duration should not be negative")
	}
}

func TestSpanRecordError(t *testing.T) {
	buf := captureLogs(t)

	_, span := StartSpan(context.Background(), "transcribe")
	span.RecordError(errors.New("engine down"))
	span.End()

	if !strings.Contains(buf.String(), "span failed") {
		t.Errorf("failed span should log at warn: %s", buf.String())
	}
}

func TestLoggerFields(t *testing.T) {
	buf := captureLogs(t)

	ctx := WithField(context.Background(), "run_id", "r-1")
	ctx = WithField(ctx, "label", "Zoom")
	ctx = WithContext(ctx, New())
	Logger(ctx).Info("hello")

	out := buf.String()
	for _, want := range []string{"run_id=r-1", "label=Zoom", "trace_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestMiddlewareEchoesTraceID(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	req.Header.Set(TraceIDKey, "abc")
	req.Header.Set(SpanIDKey, "caller")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "abc" || seen.ParentSpanID != "caller" {
		t.Errorf("trace context = %+v, want trace abc with parent caller", seen)
	}
	if got := rec.Header().Get(TraceIDKey); got != "abc" {
		t.Errorf("response trace header = %q, want %q", got, "abc")
	}
}

func TestInjectMetadata(t *testing.T) {
	tc := New()
	ctx := injectMetadata(WithContext(context.Background(), tc))

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("outgoing metadata missing")
	}
	if got := md.Get(TraceIDKey); len(got) != 1 || got[0] != tc.TraceID {
		t.Errorf("trace id metadata = %v, want %q", got, tc.TraceID)
	}
}
