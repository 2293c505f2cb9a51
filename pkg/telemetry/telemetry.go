// Package telemetry wires up tracing and metrics for a crawl run: an OTLP
// trace exporter and a Prometheus metrics exporter, both optional and
// configured from pkg/config. Spans follow the same scope/attribute
// convention the teacher's react agent uses for its own tool-call tracing.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScopeCrawl = "crawlforge.crawlloop"

	traceSpanStep       = "crawlforge.step"
	traceSpanLLMCall    = "crawlforge.llm.generate"
	traceSpanDeviceCall = "crawlforge.device.action"

	traceAttrRunID   = "crawlforge.run_id"
	traceAttrStep    = "crawlforge.step_number"
	traceAttrStatus  = "crawlforge.status"
	traceAttrAction  = "crawlforge.action_kind"
	traceAttrLLMName = "crawlforge.llm.provider"
)

// Config controls which exporters telemetry.Setup activates. Empty
// OTLPEndpoint or a false PrometheusEnabled disables the respective
// exporter; Setup then returns a no-op provider for that signal.
type Config struct {
	OTLPEndpoint      string
	PrometheusEnabled bool
	PrometheusAddr    string
}

// Provider bundles the constructed tracer/meter and a Shutdown that flushes
// and closes both.
type Provider struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	shutdown []func(context.Context) error
}

// Setup builds tracing/metrics providers per cfg, registering them as the
// global otel providers so instrumented code anywhere in the module
// (including pack-style otel.Tracer(...) call sites) picks them up.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		p.shutdown = append(p.shutdown, tp.Shutdown)
	}
	p.Tracer = otel.Tracer(traceScopeCrawl)

	if cfg.PrometheusEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		otel.SetMeterProvider(mp)
		p.shutdown = append(p.shutdown, mp.Shutdown)
	}
	p.Meter = otel.Meter(traceScopeCrawl)

	return p, nil
}

// Shutdown flushes and closes every exporter Setup activated.
func (p *Provider) Shutdown(ctx context.Context) error {
	var lastErr error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// StartStepSpan starts a span covering one CrawlLoop step iteration.
func (p *Provider) StartStepSpan(ctx context.Context, runID string, stepNumber int) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, traceSpanStep, trace.WithAttributes(
		attribute.String(traceAttrRunID, runID),
		attribute.Int(traceAttrStep, stepNumber),
	))
}

// StartLLMSpan starts a span around a single ModelAdapter.GenerateResponse call.
func (p *Provider) StartLLMSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, traceSpanLLMCall, trace.WithAttributes(
		attribute.String(traceAttrLLMName, provider),
	))
}

// StartDeviceSpan starts a span around a single ActionExecutor dispatch.
func (p *Provider) StartDeviceSpan(ctx context.Context, actionKind string) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, traceSpanDeviceCall, trace.WithAttributes(
		attribute.String(traceAttrAction, actionKind),
	))
}

// MarkResult records err (if any) onto span and sets a status attribute,
// mirroring the teacher's markSpanResult helper.
func MarkResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "success"))
}
