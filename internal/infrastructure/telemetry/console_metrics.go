package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when no meter is given
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// ConsoleMetrics counts what operators do with orders and how matches were found
type ConsoleMetrics struct {
	analyses         *Counter
	actions          *Counter
	upstreamDuration *Histogram
}

// NewConsoleMetrics registers the console instruments on meter
func NewConsoleMetrics(meter metric.Meter) (*ConsoleMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	analyses, err := NewCounter(meter,
		"console_order_analyses_total",
		"Orders analyzed, by matching rule and decision",
		"{analyses}",
	)
	if err != nil {
		return nil, err
	}

	actions, err := NewCounter(meter,
		"console_actions_total",
		"Operator actions on orders, by operation and outcome",
		"{actions}",
	)
	if err != nil {
		return nil, err
	}

	upstream, err := NewHistogram(meter, HistogramOpts{
		Name:        "console_upstream_duration_seconds",
		Description: "Duration of calls to the storefront and financing backends",
		Unit:        "s",
		Boundaries:  UpstreamDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &ConsoleMetrics{analyses: analyses, actions: actions, upstreamDuration: upstream}, nil
}

// RecordAnalysis counts one reconciliation
func (m *ConsoleMetrics) RecordAnalysis(ctx context.Context, rule, decision string) {
	m.analyses.Inc(ctx, AttrRule.String(rule), AttrDecision.String(decision))
}

// RecordAction counts one operator action; outcome is "success", "partial" or "failed"
func (m *ConsoleMetrics) RecordAction(ctx context.Context, operation, outcome string) {
	m.actions.Inc(ctx, AttrOperation.String(operation), AttrOutcome.String(outcome))
}

// RecordUpstream records the duration of a call to upstream ("storefront" or "financing")
func (m *ConsoleMetrics) RecordUpstream(ctx context.Context, upstream, operation string, d time.Duration) {
	m.upstreamDuration.RecordDuration(ctx, d, AttrUpstream.String(upstream), AttrOperation.String(operation))
}
