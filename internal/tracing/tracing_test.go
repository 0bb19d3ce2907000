package tracing_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/internal/tracing"
)

func TestNewTracerProvider_LogsSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tp, shutdown := tracing.NewTracerProvider(&config.LogConfig{Trace: true}, logger)
	defer func() {
		require.NoError(t, shutdown(context.Background()))
	}()

	_, span := tp.Tracer("test").Start(context.Background(), "agent.decide")
	span.SetAttributes(attribute.String("thread_id", "customer_1234abcd"))
	span.End()

	out := buf.String()
	assert.Contains(t, out, "span start")
	assert.Contains(t, out, "span end")
	assert.Contains(t, out, "name=agent.decide")
	assert.Contains(t, out, "thread_id=customer_1234abcd")
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tp, shutdown := tracing.NewTracerProvider(&config.LogConfig{}, logger)
	_, span := tp.Tracer("test").Start(context.Background(), "agent.decide")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}
