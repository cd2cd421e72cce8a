// Package tracing owns the OpenTelemetry tracer provider. Spans are
// started through the global tracer by the stream and apiclient
// packages; when tracing is disabled the global provider stays
// untouched and those spans are no-ops.
package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/logger"
)

type Manager struct {
	enabled bool
	tp      *sdktrace.TracerProvider
}

func NewManager() (*Manager, error) {
	if !config.TracingEnabled {
		return &Manager{enabled: false}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.TracingExporterTimeout)
	defer cancel()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(stripScheme(config.OTLPEndpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("Meshtap"),
			semconv.ServiceVersionKey.String(config.GetVersion()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.TracingSampleRate))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("Tracing enabled",
		zap.String("otlp_endpoint", config.OTLPEndpoint),
		zap.Float64("sample_rate", config.TracingSampleRate))

	return &Manager{enabled: true, tp: tp}, nil
}

func (m *Manager) Enabled() bool {
	return m != nil && m.enabled
}

// Shutdown flushes buffered spans and stops the provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil || !m.enabled || m.tp == nil {
		return nil
	}
	return m.tp.Shutdown(ctx)
}

// stripScheme reduces a URL-style endpoint to host:port; the OTLP HTTP
// client takes the scheme from its own options.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimRight(endpoint, "/")
}
