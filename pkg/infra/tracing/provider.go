// Package tracing sets up the OpenTelemetry tracer provider and offers the
// span helpers used on the ingest and query paths.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc/credentials/insecure"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	options "github.com/kart-io/pdfrag/pkg/options/tracing"
)

// Provider owns the SDK tracer provider. The zero value (tracing disabled)
// is usable; its Shutdown is a no-op.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider validates opts and, when tracing is enabled, installs a
// global tracer provider exporting through the configured exporter.
// Disabled tracing leaves the global no-op provider in place.
func NewProvider(ctx context.Context, opts *options.Options) (*Provider, error) {
	if opts == nil || !opts.Enabled {
		return &Provider{}, nil
	}
	if err := opts.Complete(); err != nil {
		return nil, err
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid tracing options: %w", utilerrors.NewAggregate(errs))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(resourceAttrs(opts)...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracing resource: %w", err)
	}

	exp, err := newExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", opts.ExporterType, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithBatchTimeout(opts.BatchTimeout),
			sdktrace.WithExportTimeout(opts.ExportTimeout),
		),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{tp: tp}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p.tp != nil }

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func resourceAttrs(opts *options.Options) []attribute {
	attrs := []attribute{
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Environment))
	}
	return attrs
}

func newExporter(ctx context.Context, opts *options.Options) (sdktrace.SpanExporter, error) {
	switch opts.ExporterType {
	case options.ExporterOTLPGRPC:
		o := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithHeaders(opts.Headers),
		}
		if opts.Insecure {
			o = append(o, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlptracegrpc.New(ctx, o...)
	case options.ExporterOTLPHTTP:
		o := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(opts.Endpoint),
			otlptracehttp.WithHeaders(opts.Headers),
		}
		if opts.Insecure {
			o = append(o, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, o...)
	case options.ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	case options.ExporterNoop:
		return discard{}, nil
	}
	return nil, fmt.Errorf("unsupported exporter type %q", opts.ExporterType)
}

// discard drops every span. Sampling and context propagation still run,
// so trace ids appear in responses and logs.
type discard struct{}

func (discard) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discard) Shutdown(context.Context) error                            { return nil }

func sampler(opts *options.Options) sdktrace.Sampler {
	switch opts.SamplerType {
	case options.SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case options.SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case options.SamplerRatio:
		return sdktrace.TraceIDRatioBased(opts.SamplerRatio)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SamplerRatio))
}
