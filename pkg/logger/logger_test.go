package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	appctx "stockledger/internal/core/context"
)

func fileLogger(t *testing.T, cfg Config) (*Logger, func() string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "log.json")
	cfg.OutputPaths = []string{out}
	log, err := New(cfg)
	require.NoError(t, err)
	return log, func() string {
		_ = log.Sync()
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		return string(data)
	}
}

func TestFromContext_CarriesTraceFields(t *testing.T) {
	log, read := fileLogger(t, Config{Level: "debug", Service: "stockledger"})

	ctx := WithLogger(context.Background(), log)
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithOperation(ctx, "ReceiveLot")

	Info(ctx, "lot received", "lot_id", "abc")

	data := read()
	assert.Contains(t, data, `"trace_id":"t-1"`)
	assert.Contains(t, data, `"request_id":"r-1"`)
	assert.Contains(t, data, `"op":"ReceiveLot"`)
	assert.Contains(t, data, `"service":"stockledger"`)
	assert.Contains(t, data, `"lot_id":"abc"`)
	assert.NotContains(t, data, `"span_id"`)
}

func TestWithContext_AddsActiveSpanID(t *testing.T) {
	log, read := fileLogger(t, Config{Level: "info"})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c},
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.WithContext(ctx).Infow("committed")

	assert.Contains(t, read(), `"span_id":"0102030405060708"`)
}

func TestWithContext_NothingToAdd(t *testing.T) {
	log := NewNop()
	assert.Same(t, log, log.WithContext(context.Background()))
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud"})
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(-1))
}

func TestNew_ConsoleEncoding(t *testing.T) {
	log, read := fileLogger(t, Config{Level: "info", Encoding: "console"})
	log.Infow("hub stopped", "subscribers_closed", 2)

	data := read()
	assert.Contains(t, data, "hub stopped")
	assert.NotContains(t, data, `"msg"`)
}
