// Package trace carries W3C-style trace identifiers across the recorder's
// command surfaces (HTTP, WebSocket, gRPC, MCP) so that one user action can be
// followed through the session manager's logs.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Propagation keys, used both as HTTP headers and gRPC metadata.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
	OriginKey       = "x-command-origin"
)

// Command origins.
const (
	OriginHTTP = "http"
	OriginWS   = "ws"
	OriginGRPC = "grpc"
	OriginMCP  = "mcp"
	OriginCLI  = "cli"
)

type ctxKey struct{}

// Context identifies one span and the surface the command arrived on.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Origin       string
}

// New starts a fresh trace.
func New() Context {
	return Context{TraceID: newTraceID(), SpanID: newSpanID()}
}

// NewChild continues parent's trace under a new span.
func NewChild(parent Context) Context {
	return Context{
		TraceID:      parent.TraceID,
		SpanID:       newSpanID(),
		ParentSpanID: parent.SpanID,
		Origin:       parent.Origin,
	}
}

func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns ctx's trace, attaching a new one if there is none.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// Continue builds the local span for a command received from a remote caller.
// An empty traceID starts a new trace.
func Continue(traceID, callerSpan, origin string) Context {
	tc := Context{
		TraceID:      traceID,
		SpanID:       newSpanID(),
		ParentSpanID: callerSpan,
		Origin:       origin,
	}
	if tc.TraceID == "" {
		tc.TraceID = newTraceID()
	}
	return tc
}

func newTraceID() string { return randomHex(16) }

func newSpanID() string { return randomHex(8) }

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ToMap exports the propagation keys for outgoing metadata.
func (c Context) ToMap() map[string]string {
	m := map[string]string{
		TraceIDKey: c.TraceID,
		SpanIDKey:  c.SpanID,
	}
	if c.ParentSpanID != "" {
		m[ParentSpanIDKey] = c.ParentSpanID
	}
	if c.Origin != "" {
		m[OriginKey] = c.Origin
	}
	return m
}

// FromMap reads incoming propagation keys. The caller's span becomes the parent.
func FromMap(m map[string]string) Context {
	return Continue(m[TraceIDKey], m[SpanIDKey], m[OriginKey])
}

// logArgs returns key/value pairs for slog.
func (c Context) logArgs() []any {
	args := make([]any, 0, 8)
	args = append(args, "trace_id", c.TraceID, "span_id", c.SpanID)
	if c.ParentSpanID != "" {
		args = append(args, "parent_span_id", c.ParentSpanID)
	}
	if c.Origin != "" {
		args = append(args, "origin", c.Origin)
	}
	return args
}

// Span is one timed command.
type Span struct {
	Name      string
	Ctx       Context
	StartTime time.Time
	EndTime   time.Time
	Attrs     map[string]any
}

// StartSpan opens a child span of ctx's trace, or a new trace.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	tc := New()
	if parent, ok := FromContext(ctx); ok && parent.TraceID != "" {
		tc = NewChild(parent)
	}
	s := &Span{
		Name:      name,
		Ctx:       tc,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	return WithContext(ctx, tc), s
}

func (s *Span) End() { s.EndTime = time.Now() }

func (s *Span) SetAttr(key string, val any) { s.Attrs[key] = val }

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", s.Name),
		slog.String("trace_id", s.Ctx.TraceID),
		slog.String("span_id", s.Ctx.SpanID),
		slog.Duration("duration", s.Duration()),
	}
	if s.Ctx.Origin != "" {
		attrs = append(attrs, slog.String("origin", s.Ctx.Origin))
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}

// Logger returns the default logger annotated with ctx's trace, if any.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	return slog.Default().With(tc.logArgs()...)
}
