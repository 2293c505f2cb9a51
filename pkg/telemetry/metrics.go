package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters/histograms a CrawlLoop run reports. None of
// them is persisted in the run's database row.
type Metrics struct {
	StepsExecuted     metric.Int64Counter
	ActionsExecuted   metric.Int64Counter
	BatchesExecuted   metric.Int64Counter
	ScreensDiscovered metric.Int64Counter
	TokensUsed        metric.Int64Counter
	LLMResponseMs     metric.Float64Histogram
}

// NewMetrics creates every instrument against meter, returning the first
// registration error encountered (if any).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var err error
	m := &Metrics{}

	if m.StepsExecuted, err = meter.Int64Counter("crawlforge.steps_executed"); err != nil {
		return nil, err
	}
	if m.ActionsExecuted, err = meter.Int64Counter("crawlforge.actions_executed"); err != nil {
		return nil, err
	}
	if m.BatchesExecuted, err = meter.Int64Counter("crawlforge.batches_executed"); err != nil {
		return nil, err
	}
	if m.ScreensDiscovered, err = meter.Int64Counter("crawlforge.screens_discovered"); err != nil {
		return nil, err
	}
	if m.TokensUsed, err = meter.Int64Counter("crawlforge.tokens_used"); err != nil {
		return nil, err
	}
	if m.LLMResponseMs, err = meter.Float64Histogram("crawlforge.llm_response_ms"); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordStep increments the step and action counters for one completed
// CrawlLoop step, given how many of its actions were executed (failed ones
// included).
func (m *Metrics) RecordStep(ctx context.Context, executedActions int) {
	m.StepsExecuted.Add(ctx, 1)
	if executedActions > 0 {
		m.ActionsExecuted.Add(ctx, int64(executedActions))
	}
}
