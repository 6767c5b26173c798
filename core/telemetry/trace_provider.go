package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/strataline/dispatch/core/config"
	"github.com/strataline/dispatch/core/logger"
)

// InstallTraceProvider installs the global trace provider based on the http
// otlp exporter. Without a collector endpoint spans go to a noop provider.
func InstallTraceProvider(
	settings *config.Trace,
	serviceName string,
) {
	var tracerProvider trace.TracerProvider = noop.NewTracerProvider()

	defer func() {
		otel.SetTracerProvider(tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}()

	if settings == nil || len(settings.Endpoint) == 0 {
		return
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(settings.Endpoint),
	}
	if settings.CACertsBase64 != "" {
		tlsConfig, err := collectorTLSConfig(settings.CACertsBase64)
		if err != nil {
			logger.Logger().WithError(err).Error("building collector TLS config")
			return
		}
		opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig))
	} else {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	if err != nil {
		logger.Logger().WithError(err).Error("creating OTLP trace exporter")
		return
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName)))
	if err != nil {
		logger.Logger().WithError(err).Error("creating resource")
		return
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r))
}
