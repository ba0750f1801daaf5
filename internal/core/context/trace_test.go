package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTraceContext_GeneratesIDs(t *testing.T) {
	tc := NewTraceContext(context.Background(), "")
	assert.Len(t, tc.TraceID, 32)
	assert.NotEmpty(t, tc.RequestID)

	tc = NewTraceContext(context.Background(), "req-7")
	assert.Equal(t, "req-7", tc.RequestID)
}

func TestNewTraceContext_UsesActiveSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x11},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tc := NewTraceContext(ctx, "")
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", tc.TraceID)

	traceID, spanID := SpanIDs(ctx)
	assert.Equal(t, tc.TraceID, traceID)
	assert.Equal(t, "aabbccddeeff0011", spanID)
}

func TestWithOperation_CopiesParent(t *testing.T) {
	parent := &TraceContext{TraceID: "t-1", RequestID: "r-1"}
	ctx := WithTrace(context.Background(), parent)

	opCtx := WithOperation(ctx, "DiscardFromLot")

	got := GetTrace(opCtx)
	require.NotNil(t, got)
	assert.Equal(t, "DiscardFromLot", got.Operation)
	assert.Equal(t, "r-1", got.RequestID)
	assert.Empty(t, parent.Operation, "the request's trace must not be mutated")
	assert.Equal(t, "r-1", GetRequestID(ctx))
}

func TestWithOperation_WithoutParent(t *testing.T) {
	got := GetTrace(WithOperation(context.Background(), "VerifyStock"))
	require.NotNil(t, got)
	assert.Equal(t, "VerifyStock", got.Operation)
	assert.Empty(t, got.RequestID)
}
