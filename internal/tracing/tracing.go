/**
 * @description
 * OpenTelemetry setup and a small span helper. Collaborator calls are wrapped
 * with Do/Run instead of hand-written span boilerplate at each call site.
 *
 * @dependencies
 * - go.opentelemetry.io/otel: tracer API.
 * - go.opentelemetry.io/otel/sdk: tracer provider.
 * - go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp: exporter.
 */

package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/omnixys/omnixys-person-service"

// Setup installs the global tracer provider. With an empty endpoint the
// no-op provider stays in place and the returned shutdown does nothing.
func Setup(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{}
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		opts = append(opts, otlptracehttp.WithEndpoint(strings.TrimPrefix(endpoint, "http://")), otlptracehttp.WithInsecure())
	case strings.HasPrefix(endpoint, "https://"):
		opts = append(opts, otlptracehttp.WithEndpoint(strings.TrimPrefix(endpoint, "https://")))
	default:
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	resource := sdkresource.NewSchemaless(attribute.String("service.name", serviceName))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return provider.Shutdown, nil
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Do runs fn inside a span named name and records a returned error on it.
func Do[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := Tracer().Start(ctx, name)
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		RecordError(span, err)
	}
	return out, err
}

// Run is Do for calls without a result.
func Run(ctx context.Context, name string, fn func(context.Context) error) error {
	_, err := Do(ctx, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RecordError marks span as failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("exception.class", fmt.Sprintf("%T", err)))
}
