// Package telemetry sets up structured logging, tracing and metrics. All
// output goes to rotated files so the terminal stays clean for the REPL.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName is reported on every span, metric and log file name
const ServiceName = "supplyguard"

func rotatingFile(dir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger installs a JSON slog logger writing to <dir>/supplyguard.log as
// the default logger. The returned closer flushes the log file.
func InitLogger(dir string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	file := rotatingFile(dir, ServiceName+".log")
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})

	logger := slog.New(handler).With("service", ServiceName)
	slog.SetDefault(logger)
	return logger, file, nil
}

// InitTelemetry installs global tracer and meter providers that export to
// <dir>/supplyguard_traces.log and <dir>/supplyguard_metrics.log.
// The returned cleanup flushes both and must run before exit.
func InitTelemetry(ctx context.Context, dir, version string) (trace.Tracer, metric.Meter, func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp, traceFile, err := newTracerProvider(res, dir)
	if err != nil {
		return nil, nil, nil, err
	}
	mp, metricsFile, err := newMeterProvider(res, dir, metricInterval)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = traceFile.Close()
		return nil, nil, nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// providers first so their last batch lands in the files
		shutdowns := []struct {
			name string
			fn   func() error
		}{
			{"tracer provider", func() error { return tp.Shutdown(shutdownCtx) }},
			{"meter provider", func() error { return mp.Shutdown(shutdownCtx) }},
			{"trace file", traceFile.Close},
			{"metrics file", metricsFile.Close},
		}
		for _, s := range shutdowns {
			if err := s.fn(); err != nil {
				slog.Error("failed to shutdown "+s.name, "error", err)
			}
		}
	}

	return tp.Tracer(ServiceName), mp.Meter(ServiceName), cleanup, nil
}

const metricInterval = 10 * time.Second

func newTracerProvider(res *resource.Resource, dir string) (*sdktrace.TracerProvider, *lumberjack.Logger, error) {
	file := rotatingFile(dir, ServiceName+"_traces.log")
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(file), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return tp, file, nil
}

func newMeterProvider(res *resource.Resource, dir string, interval time.Duration) (*sdkmetric.MeterProvider, *lumberjack.Logger, error) {
	file := rotatingFile(dir, ServiceName+"_metrics.log")
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(file), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	return mp, file, nil
}

// Level maps the debug flag to a slog level
func Level(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
