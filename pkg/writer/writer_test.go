package writer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/metrics"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/output"
)

type memSink struct {
	mu      sync.Mutex
	batches []collector.Batch
	fail    error
}

func (m *memSink) Write(_ context.Context, b collector.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.batches = append(m.batches, b)
	return nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func batch(id string, n int) collector.Batch {
	a := asset.New(id, "repo-"+id, "T", nil)
	b := collector.NewBatch("test", a)
	for i := 0; i < n; i++ {
		b.Add(a.Ref("Stars"), int64(i), time.Unix(int64(1700000000+i), 0))
	}
	return b
}

func TestStageWritesUntilClosed(t *testing.T) {
	ch := output.New(nil)
	sink := &memSink{}
	st := NewStage(ch, sink, Options{Logger: zap.NewNop()})

	done := make(chan error, 1)
	go func() { done <- st.Run(context.Background()) }()

	require.NoError(t, ch.Publish(batch("1", 2)))
	require.NoError(t, ch.Publish(batch("2", 0)))
	require.NoError(t, ch.Publish(batch("3", 1)))
	ch.Close()

	require.NoError(t, <-done)
	assert.Equal(t, 2, sink.count(), "empty batches are not written")
}

func TestStageDrainsOnCancel(t *testing.T) {
	ch := output.New(nil)
	sink := &memSink{}
	st := NewStage(ch, sink, Options{Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, ch.Publish(batch("x", 1)))
	}
	require.NoError(t, st.Run(ctx))
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, 0, ch.Len())
}

func TestStageLogsFailedWrites(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	reg := prometheus.NewRegistry()
	wm := metrics.NewMetricFactory(metrics.NewPromRegistry(reg, false)).NewWriterMetrics()

	ch := output.New(wm.SetQueueLength)
	st := NewStage(ch, &memSink{fail: errors.New("disk full")}, Options{Logger: zap.New(core), Metrics: wm})
	require.NoError(t, ch.Publish(batch("7", 3)))

	assert.Equal(t, 1, st.Drain(context.Background()))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "failed to write batch", entry.Message)
	assert.Equal(t, "7", entry.ContextMap()["asset_id"])
}

func TestSQLiteSink(t *testing.T) {
	ctx := context.Background()
	sink, err := OpenSQLiteSink(ctx, filepath.Join(t.TempDir(), "values.db"))
	require.NoError(t, err)
	defer sink.Close()

	ts := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	b := collector.Batch{AssetID: "1", Collector: "github", Values: []collector.Value{
		{Ref: asset.AttributeRef{ElementID: "1", Attribute: "Stars"}, Value: int64(40), Timestamp: ts},
		{Ref: asset.AttributeRef{ElementID: "1", Attribute: "Stars"}, Value: int64(42), Timestamp: ts.Add(time.Hour)},
		{Ref: asset.AttributeRef{ElementID: "1", Attribute: "Ratio"}, Value: 0.5, Timestamp: ts},
	}}
	require.NoError(t, sink.Write(ctx, b))

	// same key again replaces the value
	b.Values = b.Values[:1]
	b.Values[0].Value = int64(41)
	require.NoError(t, sink.Write(ctx, b))

	stars, err := sink.Samples(ctx, "1", "Stars")
	require.NoError(t, err)
	require.Len(t, stars, 2)
	got, err := stars[0].Value.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(41), got)
	assert.Equal(t, ts, stars[0].Timestamp)
	assert.Equal(t, "github", stars[1].Collector)

	ratio, err := sink.Samples(ctx, "1", "Ratio")
	require.NoError(t, err)
	require.Len(t, ratio, 1)
	assert.Equal(t, asset.KindFloat, ratio[0].Value.Kind())
}

func TestSQLiteSinkRejectsUnsupportedValue(t *testing.T) {
	ctx := context.Background()
	sink, err := OpenSQLiteSink(ctx, filepath.Join(t.TempDir(), "values.db"))
	require.NoError(t, err)
	defer sink.Close()

	err = sink.Write(ctx, collector.Batch{Values: []collector.Value{
		{Ref: asset.AttributeRef{ElementID: "1", Attribute: "A"}, Value: int64(1), Timestamp: time.Now()},
		{Ref: asset.AttributeRef{ElementID: "1", Attribute: "B"}, Value: []int{1}, Timestamp: time.Now()},
	}})
	require.Error(t, err)

	got, err := sink.Samples(ctx, "1", "A")
	require.NoError(t, err)
	assert.Empty(t, got, "the batch is written all or nothing")
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSink(zap.New(core))
	require.NoError(t, s.Write(context.Background(), batch("5", 2)))
	assert.Equal(t, 2, logs.FilterMessage("value").Len())
	assert.NoError(t, s.Close())
}
