// Package telemetry holds the OpenTelemetry tracer and metric instruments of
// contract generation. Without a configured provider every instrument is a
// no-op.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer and meter.
const InstrumentationName = "contractpdf"

// Generation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Tracer returns the package tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartGenerate starts the span of one generate call.
func StartGenerate(ctx context.Context, entityID, templateKey string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "contract.generate", trace.WithAttributes(
		attribute.String("contract.entity_id", entityID),
		attribute.String("contract.template_key", templateKey),
	))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Metrics provides the generation instruments.
type Metrics struct {
	generations   metric.Int64Counter
	duration      metric.Float64Histogram
	fontFallbacks metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFromProvider(otel.GetMeterProvider())
}

// NewMetricsFromProvider creates the instruments on provider.
func NewMetricsFromProvider(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(InstrumentationName)
	m := &Metrics{}

	var err error
	m.generations, err = meter.Int64Counter(
		"contractpdf.generations",
		metric.WithDescription("Number of contract generations"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"contractpdf.generation.duration",
		metric.WithDescription("Duration of contract generations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.fontFallbacks, err = meter.Int64Counter(
		"contractpdf.font.fallbacks",
		metric.WithDescription("Fonts replaced by the standard font"),
		metric.WithUnit("{font}"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordGeneration records one finished generation.
func (m *Metrics) RecordGeneration(ctx context.Context, templateKey, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("template", templateKey),
	)
	m.generations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFontFallbacks records fonts that fell back to the standard font.
func (m *Metrics) RecordFontFallbacks(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.fontFallbacks.Add(ctx, int64(count))
}
