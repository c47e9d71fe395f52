package telemetry

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const exporterDialTimeout = 3 * time.Second

// Endpoint is where one signal is exported to. Grpc wins when both are set,
// neither keeps the signal in-process.
type Endpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (e Endpoint) protocol() string {
	switch {
	case e.GrpcEndpoint != "":
		return "grpc"
	case e.HttpEndpoint != "":
		return "http"
	}
	return ""
}

func (e Endpoint) log(signal string) {
	url := e.GrpcEndpoint
	if url == "" {
		url = e.HttpEndpoint
	}
	slog.Info(
		"otlp exporter initialized",
		"signal", signal,
		"type", e.protocol(),
		"endpoint", url,
		"headers", len(e.Headers) > 0,
	)
}

type OtlpConfig struct {
	Traces  Endpoint `json:"traces"`
	Metrics Endpoint `json:"metrics"`
	// MetricInterval is how often metrics are pushed, defaults to 15s.
	MetricInterval string `json:"metric_interval"`
}

// Config is the shape of telemetry.json5.
type Config struct {
	Otlp OtlpConfig `json:"otlp"`
	// ResourceAttributes tag every span and metric, a deployment name or the
	// county being scraped for example.
	ResourceAttributes map[string]string `json:"resource_attributes"`
}

func newResource(serviceName string, extra map[string]string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	for _, key := range slices.Sorted(maps.Keys(extra)) {
		attrs = append(attrs, attribute.String(key, extra[key]))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, e Endpoint) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{trace.WithResource(r)}

	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	var exporter trace.SpanExporter
	var err error
	switch e.protocol() {
	case "grpc":
		exporter, err = otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(e.GrpcEndpoint),
			otlptracegrpc.WithHeaders(e.Headers),
		)
	case "http":
		exporter, err = otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(e.HttpEndpoint),
			otlptracehttp.WithHeaders(e.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		e.log("traces")
		opts = append(opts, trace.WithBatcher(exporter))
	}
	return trace.NewTracerProvider(opts...), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, e Endpoint, interval time.Duration) (*metric.MeterProvider, error) {
	opts := []metric.Option{metric.WithResource(r)}

	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	var exporter metric.Exporter
	var err error
	switch e.protocol() {
	case "grpc":
		exporter, err = otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(e.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(e.Headers),
		)
	case "http":
		exporter, err = otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpointURL(e.HttpEndpoint),
			otlpmetrichttp.WithHeaders(e.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		e.log("metrics")
		opts = append(opts, metric.WithReader(
			metric.NewPeriodicReader(exporter, metric.WithInterval(interval)),
		))
	}
	return metric.NewMeterProvider(opts...), nil
}
