package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// engineTracer optionally wraps each task execution in a span tagged with
// the identity and envelope shape. It is never load-bearing for
// correctness — a nil tracer degrades to a no-op, matching how the
// teacher's telemetry collaborator is wired as optional.
type engineTracer interface {
	startSpan(ctx context.Context, env *Envelope) (end func())
}

type noopTracer struct{}

func (noopTracer) startSpan(ctx context.Context, env *Envelope) func() { return func() {} }

// otelTracer adapts an OpenTelemetry tracer to engineTracer.
type otelTracer struct {
	tracer trace.Tracer
}

func newOtelTracer(tracer trace.Tracer) engineTracer {
	if tracer == nil {
		return noopTracer{}
	}
	return &otelTracer{tracer: tracer}
}

func (t *otelTracer) startSpan(ctx context.Context, env *Envelope) func() {
	_, span := t.tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(
			attribute.String("identity", string(env.Context.Identity)),
			attribute.String("shape", string(env.Shape)),
		),
	)
	return func() { span.End() }
}
