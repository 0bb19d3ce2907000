// Package tracing builds the tracer provider the agent opens its node spans on.
package tracing

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/habiliai/supportagent/config"
)

// NewTracerProvider returns a provider that logs span start and end through
// logger when conf.Trace is set, and a noop provider otherwise. The returned
// func shuts the provider down.
func NewTracerProvider(conf *config.LogConfig, logger *slog.Logger) (trace.TracerProvider, func(ctx context.Context) error) {
	if !conf.Trace {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(&loggingSpanProcessor{
			verbose: conf.TraceVerbose,
			logger:  logger.With("component", "tracing"),
		}),
	)
	return tp, tp.Shutdown
}
