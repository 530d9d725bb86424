// Package telemetry provides OpenTelemetry tracing setup for harvest runs.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by every harvester span.
const InstrumentationName = "github.com/JakeFAU/content-harvester"

// InitTracerProvider installs a global trace provider for serviceName. No
// exporter is configured by default; pass sdktrace.WithBatcher or
// sdktrace.WithSpanProcessor in opts to ship spans somewhere. Callers must
// Shutdown the returned provider.
func InitTracerProvider(ctx context.Context, serviceName string, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

// Tracer returns the harvester tracer from the global provider. Until
// InitTracerProvider runs it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
