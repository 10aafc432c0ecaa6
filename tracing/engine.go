/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

// Package tracing exports OpenTelemetry spans of the HTTP APIs, outgoing HTTP requests and authorization
// lifecycle events.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	moduleName         = "Tracing"
	defaultServiceName = "siop"
	tracerName         = "github.com/nuts-foundation/nuts-siop"
)

// enabled is set to true when OpenTelemetry tracing is configured.
var enabled atomic.Bool

// siopTracerProvider holds the server's own TracerProvider.
// This is used instead of the global when the server is embedded in another application.
var siopTracerProvider atomic.Pointer[trace.TracerProvider]

// New creates a new tracing engine instance.
func New() *Engine {
	return &Engine{
		config: DefaultConfig(),
		out:    os.Stdout,
	}
}

// Engine is the engine that manages OpenTelemetry tracing.
// It must be registered first to ensure tracing is active before other engines create their HTTP clients,
// and is shut down last (due to reverse shutdown order) to flush all spans.
type Engine struct {
	config   Config
	out      io.Writer
	shutdown func(context.Context) error
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return moduleName
}

// Config returns the engine configuration.
func (e *Engine) Config() interface{} {
	return &e.config
}

// Configure sets up OpenTelemetry tracing with the configured exporter.
func (e *Engine) Configure(_ core.ServerConfig) error {
	switch e.config.Exporter {
	case ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid tracing.exporter: %s", e.config.Exporter)
	}
	shutdown, err := setupTracing(e.config, e.out)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	e.shutdown = shutdown
	return nil
}

// Start is a no-op since tracing is already active after Configure.
func (e *Engine) Start() error {
	return nil
}

// Shutdown stops the exporters and flushes any remaining spans.
func (e *Engine) Shutdown() error {
	enabled.Store(false)
	siopTracerProvider.Store(nil)
	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.shutdown(ctx)
	}
	return nil
}

// Routes adds the middleware that starts a server span for every API request.
func (e *Engine) Routes(router core.EchoRouter) {
	router.Use(middleware)
}

// Enabled returns true if OpenTelemetry tracing is configured.
func Enabled() bool {
	return enabled.Load()
}

// GetTracerProvider returns the server's TracerProvider, or the global one when it has none.
func GetTracerProvider() oteltrace.TracerProvider {
	if provider := siopTracerProvider.Load(); provider != nil {
		return provider
	}
	return otel.GetTracerProvider()
}

// Tracer returns the tracer spans of the server are started with.
func Tracer() oteltrace.Tracer {
	return GetTracerProvider().Tracer(tracerName)
}

// setupTracing initializes OpenTelemetry tracing with the given configuration.
// Returns a shutdown function that should be called on application exit.
// If no exporter is configured, tracing is disabled and a no-op shutdown function is returned.
func setupTracing(cfg Config, out io.Writer) (shutdown func(context.Context) error, err error) {
	if !cfg.enabled() {
		logrus.Info("Tracing disabled (no endpoint configured)")
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var errs error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = errors.Join(errs, err)
			}
		}
		return errs
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logrus.WithError(err).Error("OpenTelemetry SDK error")
	}))

	// W3C Trace Context + Baggage
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(core.Version()),
		),
	)
	if err != nil {
		return nil, err
	}

	var exporter trace.SpanExporter
	switch cfg.Exporter {
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(out))
	default:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, err
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	siopTracerProvider.Store(tracerProvider)

	// Only set as global if no other provider exists (i.e., not embedded).
	if _, hasParentProvider := otel.GetTracerProvider().(*trace.TracerProvider); !hasParentProvider {
		otel.SetTracerProvider(tracerProvider)
	}

	// HTTP clients created after this point propagate the trace context
	previousTransport := client.DefaultTransport
	client.DefaultTransport = newTransport(previousTransport)
	shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
		client.DefaultTransport = previousTransport
		return nil
	})

	logrus.AddHook(&tracingLogrusHook{})
	enabled.Store(true)

	logrus.WithFields(logrus.Fields{
		"exporter": cfg.Exporter,
		"endpoint": cfg.Endpoint,
		"service":  serviceName,
	}).Info("OpenTelemetry tracing initialized")

	return shutdown, nil
}

// tracingLogrusHook is a logrus hook that injects trace context into log entries.
type tracingLogrusHook struct{}

func (h *tracingLogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *tracingLogrusHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil || !Enabled() {
		return nil
	}
	span := oteltrace.SpanFromContext(entry.Context)
	if !span.SpanContext().IsValid() {
		return nil
	}
	spanCtx := span.SpanContext()
	entry.Data["trace_id"] = spanCtx.TraceID().String()
	entry.Data["span_id"] = spanCtx.SpanID().String()
	return nil
}
