// pkg/middleware/tracing.go
package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// InitTracing installs an OTLP tracer provider when OTEL_EXPORTER_OTLP_(TRACES_)ENDPOINT is set.
// The returned function flushes pending spans; it is a no-op when tracing is off.
func InitTracing(ctx context.Context, service string, log *zap.SugaredLogger) (enabled bool, shutdown func(context.Context) error) {
	noop := func(context.Context) error { return nil }
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return false, noop
	}
	opts := []otlptracehttp.Option{}
	if strings.HasPrefix(strings.ToLower(endpoint), "http://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		log.Warnw("tracing: exporter init failed, instrumentation disabled", "err", err)
		return false, noop
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(service)))
	if err != nil {
		log.Warnw("tracing: resource init failed", "err", err)
		return false, noop
	}
	tp := trace.NewTracerProvider(trace.WithBatcher(exp), trace.WithResource(res))
	otel.SetTracerProvider(tp)
	log.Infow("tracing enabled", "endpoint", endpoint)
	return true, tp.Shutdown
}

// Tracing wraps handlers with otelhttp spans, or passes through when tracing is off.
func Tracing(enabled bool) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, "proxy") }
}
