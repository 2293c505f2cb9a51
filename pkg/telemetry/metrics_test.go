package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics_RegistersAllInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter(traceScopeCrawl)

	m, err := NewMetrics(meter)
	require.NoError(t, err)

	m.RecordStep(context.Background(), 3)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))

	found := map[string]bool{}
	for _, sm := range data.ScopeMetrics {
		for _, metric := range sm.Metrics {
			found[metric.Name] = true
		}
	}
	assert.True(t, found["crawlforge.steps_executed"])
	assert.True(t, found["crawlforge.actions_executed"])
}

func TestRecordStep_ZeroActionsCollectsWithoutError(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter(traceScopeCrawl)

	m, err := NewMetrics(meter)
	require.NoError(t, err)
	m.RecordStep(context.Background(), 0)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))
	// Recording with 0 executed actions must not panic or error; presence
	// of the instrument in output is exporter-dependent so we only assert
	// the collection succeeded.
	assert.NotNil(t, data.ScopeMetrics)
}
