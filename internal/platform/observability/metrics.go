package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ConversionMetrics records transliteration and extraction counters.
type ConversionMetrics struct {
	conversions metric.Int64Counter
	cells       metric.Int64Counter
	unmapped    metric.Int64Counter
	extractions metric.Int64Counter
}

// NewConversionMetrics registers the counters on meter. A nil meter uses the
// global provider.
func NewConversionMetrics(meter metric.Meter) (*ConversionMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &ConversionMetrics{}
	var err error
	if m.conversions, err = meter.Int64Counter("braille.conversions",
		metric.WithDescription("Texts transliterated to braille")); err != nil {
		return nil, err
	}
	if m.cells, err = meter.Int64Counter("braille.cells",
		metric.WithDescription("Braille cells emitted"), metric.WithUnit("{cell}")); err != nil {
		return nil, err
	}
	if m.unmapped, err = meter.Int64Counter("braille.unmapped_characters",
		metric.WithDescription("Input characters skipped because the table has no entry")); err != nil {
		return nil, err
	}
	if m.extractions, err = meter.Int64Counter("braille.extractions",
		metric.WithDescription("Uploaded files processed for text")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordConversion counts one conversion with its output and skip sizes.
func (m *ConversionMetrics) RecordConversion(ctx context.Context, cells, unmapped int, saved bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("saved", saved))
	m.conversions.Add(ctx, 1, attrs)
	m.cells.Add(ctx, int64(cells))
	if unmapped > 0 {
		m.unmapped.Add(ctx, int64(unmapped))
	}
}

// RecordExtraction counts one upload by source kind and outcome.
func (m *ConversionMetrics) RecordExtraction(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	m.extractions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}
