// Package observability provides OpenTelemetry tracing for log operations.
//
// Spans go through the global tracer provider. Until Init installs one the
// provider is the otel no-op, so instrumented code costs almost nothing when
// tracing is off.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by logpress packages
const InstrumentationName = "github.com/ajitpratap0/logpress"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64   // 0 never samples, 1 or more always samples
	Writer         io.Writer // span output, stderr when nil
	PrettyPrint    bool
}

// DefaultTracingConfig samples every span and writes them to stderr
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:  "logpress",
		SamplingRate: 1.0,
	}
}

// Init installs a global tracer provider exporting spans as JSON. The
// returned shutdown flushes pending spans and must be called before exit.
func Init(cfg TracingConfig) (func(context.Context) error, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exportOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		exportOpts = append(exportOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exportOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	// A CLI run is short lived: export synchronously so that no span is
	// lost on exit.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the logpress tracer of the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Span wraps an otel span with error-aware completion
type Span struct {
	span trace.Span
}

// StartSpan starts a span named operation as a child of any span in ctx
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operation, trace.WithAttributes(attrs...))
	return ctx, &Span{span: span}
}

// SetAttributes adds attributes to the span
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// End marks the span failed when err is non-nil and ends it
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
