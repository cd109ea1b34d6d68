package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultgraph/internal/indexer"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestObservePass(t *testing.T) {
	m, _ := newTestMetrics(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.ObservePass(&indexer.IndexReport{
		Unchanged: 7,
		Reindexed: 2,
		Failed:    1,
		StartedAt: started,
		Duration:  2 * time.Second,
	}, nil)
	m.ObservePass(&indexer.IndexReport{Aborted: true, Reindexed: 1, StartedAt: started}, nil)
	m.ObservePass(&indexer.IndexReport{Shared: true, Reindexed: 5}, nil)
	m.ObservePass(nil, errors.New("scan failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues(PassCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues(PassAborted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues(PassFailed)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.documents.WithLabelValues("unchanged")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.documents.WithLabelValues("reindexed")), "shared pass must not be counted twice")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("failed")))
	assert.Equal(t, float64(started.Unix()), testutil.ToFloat64(m.lastPassUnixTS))
}

func TestObserveSearch(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.ObserveSearch("lexical", 20*time.Millisecond, nil)
	m.ObserveSearch("lexical", 30*time.Millisecond, nil)
	m.ObserveSearch("semantic", time.Millisecond, errors.New("boom"))

	count, err := testutil.GatherAndCount(reg, "vaultgraph_search_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per mode/status pair")
}

func TestObserveWatchBatch(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveWatchBatch(BatchIncremental)
	m.ObserveWatchBatch(BatchIncremental)
	m.ObserveWatchBatch(BatchFullPass)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.watchBatches.WithLabelValues(BatchIncremental)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchBatches.WithLabelValues(BatchFullPass)))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePass(&indexer.IndexReport{}, nil)
		m.ObserveSearch("hybrid", time.Second, nil)
		m.ObserveWatchBatch(BatchFullPass)
	})
}
