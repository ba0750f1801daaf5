// Package context carries request-scoped tracing data through the ledger.
//
// Ids follow OpenTelemetry when a span is active, so log lines, audit rows
// and exported spans of one request share a trace id.
package context

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext identifies the request (or CLI run) a piece of work belongs to.
type TraceContext struct {
	TraceID   string
	RequestID string
	// Operation names the ledger operation in progress, e.g. "ReceiveLot".
	Operation string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext starts tracing data for work entering the process.
// The trace id is the active span's when ctx has one; requestID is
// generated when empty.
func NewTraceContext(ctx context.Context, requestID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	traceID, _ := SpanIDs(ctx)
	if traceID == "" {
		// Same shape as an OpenTelemetry trace id: 32 hex digits.
		traceID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return &TraceContext{TraceID: traceID, RequestID: requestID}
}

// WithOperation tags ctx with the ledger operation being run. The parent's
// TraceContext is copied, never mutated, since it is shared by the request.
func WithOperation(ctx context.Context, op string) context.Context {
	next := TraceContext{Operation: op}
	if t := GetTrace(ctx); t != nil {
		next = *t
		next.Operation = op
	}
	return WithTrace(ctx, &next)
}

// SpanIDs returns the trace and span id of the active span, or empty
// strings when no valid span is in ctx.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
