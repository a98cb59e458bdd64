// Package tracing wraps OpenTelemetry span creation for the controller's
// long-running operations (load, seek, track switch). The core never picks
// an exporter: the embedder wires one via otel.SetTracerProvider, matching
// this package's "no network egress belongs to the core" stance from
// SPEC_FULL's AMBIENT STACK section. Without a configured provider,
// go.opentelemetry.io/otel's default no-op tracer is used, so spans are
// always safe to create.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/mediacore/playback"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span named name, returning the derived context and a
// finisher that must be deferred; err, if non-nil when the finisher runs,
// is recorded on the span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
		}
		span.End()
	}
}
