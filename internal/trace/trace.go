// Package trace provides lightweight spans and trace ids for logs and RPCs.
// Ids follow the W3C Trace Context sizes so they can be handed to an
// external collector later.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// Metadata keys for gRPC/HTTP propagation.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

type ctxKey struct{}

type fieldsKey struct{}

var traceCtxKey = ctxKey{}

// Context holds trace identifiers for a single span.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New creates a new trace context with fresh IDs.
func New() Context {
	return Context{
		TraceID: generateTraceID(),
		SpanID:  generateSpanID(),
	}
}

// NewChild creates a child context from parent.
func NewChild(parent Context) Context {
	return Context{
		TraceID:      parent.TraceID,
		SpanID:       generateSpanID(),
		ParentSpanID: parent.SpanID,
	}
}

// FromContext extracts trace context from context.Context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(traceCtxKey).(Context)
	return tc, ok
}

// WithContext injects trace context into context.Context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, traceCtxKey, tc)
}

// EnsureContext returns existing trace context or creates a new one.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// WithField attaches a key/value pair that Logger adds to every record,
// e.g. the pipeline run id or the session label.
func WithField(ctx context.Context, key string, val any) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]any)
	fields := make([]any, 0, len(prev)+2)
	fields = append(fields, prev...)
	fields = append(fields, key, val)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

// generateTraceID creates a 128-bit trace ID.
func generateTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// generateSpanID creates a 64-bit span ID.
func generateSpanID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	Ctx       Context
	StartTime time.Time
	EndTime   time.Time

	mu    sync.Mutex
	Attrs map[string]any
	err   error
	log   *slog.Logger
}

// StartSpan begins a new span.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	tc := NewChild(parent)
	if parent.TraceID == "" {
		tc = New()
	}

	ctx = WithContext(ctx, tc)
	s := &Span{
		Name:      name,
		Ctx:       tc,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		log:       Logger(ctx),
	}
	return ctx, s
}

// End marks the span as complete and logs it at debug level, or at warn
// level when an error was recorded.
func (s *Span) End() {
	s.mu.Lock()
	s.EndTime = time.Now()
	err := s.err
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("span failed", "span", s, "error", err)
		return
	}
	s.log.Debug("span finished", "span", s)
}

// SetAttr sets a span attribute.
func (s *Span) SetAttr(key string, val any) {
	s.mu.Lock()
	s.Attrs[key] = val
	s.mu.Unlock()
}

// RecordError marks the span as failed.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Duration returns span duration.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// LogValue implements slog.LogValuer for structured logging.
func (s *Span) LogValue() slog.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := []slog.Attr{
		slog.String("name", s.Name),
		slog.Duration("duration", s.Duration()),
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}

// Logger returns a slog.Logger with trace context and fields.
func Logger(ctx context.Context) *slog.Logger {
	log := slog.Default()
	if fields, ok := ctx.Value(fieldsKey{}).([]any); ok {
		log = log.With(fields...)
	}
	tc, ok := FromContext(ctx)
	if !ok {
		return log
	}
	args := make([]any, 0, 6)
	args = append(args, "trace_id", tc.TraceID, "span_id", tc.SpanID)
	if tc.ParentSpanID != "" {
		args = append(args, "parent_span_id", tc.ParentSpanID)
	}
	return log.With(args...)
}
