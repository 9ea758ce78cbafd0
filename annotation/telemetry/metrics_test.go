package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp, attribute.String("approach", "baseline"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterBy(t *testing.T, m *metricdata.Metrics, key string) map[string]int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "data type %T", m.Data)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		approach, _ := dp.Attributes.Value("approach")
		assert.Equal(t, "baseline", approach.AsString())
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestRecordAttemptAndDialogue(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAttempt(ctx, "parse_failure", 2*time.Second)
	m.RecordAttempt(ctx, "ok", 1500*time.Millisecond)
	m.RecordAttempt(ctx, "ok", time.Second)
	m.RecordDialogue(ctx, "succeeded")
	m.RecordDialogue(ctx, "failed")
	m.RecordDialogue(ctx, "succeeded")

	rm := collect(t, reader)

	assert.Equal(t, map[string]int64{"ok": 2, "parse_failure": 1},
		counterBy(t, findMetric(rm, "role_annotator.attempts"), "result"))
	assert.Equal(t, map[string]int64{"succeeded": 2, "failed": 1},
		counterBy(t, findMetric(rm, "role_annotator.dialogues"), "outcome"))

	h := findMetric(rm, "role_annotator.completion.duration")
	require.NotNil(t, h)
	hist, ok := h.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 3, hist.DataPoints[0].Count)
	assert.InDelta(t, 4.5, hist.DataPoints[0].Sum, 1e-9)
}

func TestProviderHandler(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p)
	require.NoError(t, err)
	m.RecordDialogue(context.Background(), "succeeded")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "role_annotator_dialogues")
}
