// Package tracing provides the ambient distributed-tracing complement to
// internal/telemetry's structured Trace/LogMessage pipeline: one OTel span
// per node trigger, parented to whatever span is live on the context
// handed to the run. Grounded on oriys-nova's
// internal/observability/telemetry.go global-provider pattern, scaled down
// to what a single-process run needs (no exporter wiring).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider wraps the tracer used to open per-node-trigger spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Noop returns a Provider whose spans are never recorded, the default for
// runs that don't opt into tracing.
func Noop() *Provider {
	return &Provider{tracer: trace.NewNoopTracerProvider().Tracer("")}
}

// New builds a Provider backed by an in-process SDK TracerProvider,
// sampling every span, and registers it as the process-wide provider via
// otel.SetTracerProvider, replacing any provider registered before.
func New(serviceName string) *Provider {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp, tracer: tp.Tracer(serviceName)}
}

// Tracer returns the tracer spans are started from.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return trace.NewNoopTracerProvider().Tracer("")
	}
	return p.tracer
}

// Shutdown flushes and releases the underlying SDK provider, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
