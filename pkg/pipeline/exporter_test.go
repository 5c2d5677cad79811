package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/etna/pkg/feature"
	"github.com/tunogya/etna/pkg/metrics"
	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/sink"
	"github.com/tunogya/etna/pkg/store"
	"github.com/tunogya/etna/pkg/store/memory"
)

func syntheticBars(n int) []model.BaseBar {
	bars := make([]model.BaseBar, n)
	for i := range bars {
		base := 100 + float64(i%23) - float64(i%7)*0.5
		bars[i] = model.BaseBar{
			Time:        int32(90000 + (i/60)*100 + i%60),
			Day:         20240102,
			Open:        base,
			High:        base + 1.5,
			Low:         base - 1.25,
			Close:       base + 0.5,
			Volume:      float64(1000 + i),
			FastAverage: base + 0.1,
			SlowAverage: base - 0.1,
		}
	}
	return bars
}

func TestExporter_EndToEnd(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	w, err := store.NewWriter(backend, model.FeatureShape, store.WriterConfig{
		Table:                  store.DefaultTable,
		CompactFloat:           true,
		CommitEveryRows:        250,
		CheckpointEveryCommits: 10,
	})
	require.NoError(t, err)

	mgr, err := sink.NewManager(ctx, w, sink.ControllerConfig{FlushSize: 100}, sink.WithObserver(m))
	require.NoError(t, err)

	engine, err := feature.NewEngine(feature.Config{RequiredBars: 20})
	require.NoError(t, err)

	exp := NewExporter(engine, WithSink(mgr), WithBarObserver(m))
	for _, b := range syntheticBars(1000) {
		exp.OnBar(ctx, b)
	}
	require.NoError(t, exp.Close(ctx))

	assert.Len(t, backend.Rows(store.DefaultTable), 981)
	assert.Equal(t, []int{250, 250, 250, 231}, backend.Commits(store.DefaultTable))
	assert.True(t, backend.Closed())

	s := mgr.Summary()
	assert.Equal(t, int64(10), s.Batches)
	assert.Equal(t, int64(981), s.Enqueued)
	assert.Equal(t, int64(981), s.Committed)

	stats := exp.Stats()
	assert.Equal(t, int64(1000), stats.BarsSeen)
	assert.Equal(t, int64(981), stats.RowsEmitted)

	assert.Equal(t, 1000.0, testutil.ToFloat64(m.BarsIngested))
	assert.Equal(t, 981.0, testutil.ToFloat64(m.FeatureRows))
	assert.Equal(t, 981.0, testutil.ToFloat64(m.RowsCommitted))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Commits))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BatchesWritten))
}

func TestExporter_RowsMatchEngine(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()

	w, err := store.NewWriter(backend, model.FeatureShape, store.WriterConfig{Table: "f"})
	require.NoError(t, err)
	mgr, err := sink.NewManager(ctx, w, sink.ControllerConfig{FlushSize: 7})
	require.NoError(t, err)

	engine, err := feature.NewEngine(feature.Config{RequiredBars: 5})
	require.NoError(t, err)
	reference, err := feature.NewEngine(feature.Config{RequiredBars: 5})
	require.NoError(t, err)

	exp := NewExporter(engine, WithSink(mgr))
	bars := syntheticBars(40)
	for _, b := range bars {
		exp.OnBar(ctx, b)
	}
	require.NoError(t, exp.Close(ctx))

	want := reference.ProcessBars(bars)
	rows := backend.Rows("f")
	require.Len(t, rows, len(want))
	for i, rec := range want {
		assert.Equal(t, rec.Time, rows[i][0])
		assert.Equal(t, rec.FastSlope, rows[i][9])
		assert.Equal(t, rec.CloseLocationValue, rows[i][13])
	}
}

func TestExporter_SessionFilter(t *testing.T) {
	engine, err := feature.NewEngine(feature.Config{RequiredBars: 1})
	require.NoError(t, err)

	session, err := NewSessionFilter("093000", "093059")
	require.NoError(t, err)
	exp := NewExporter(engine, WithSession(session))

	ctx := context.Background()
	_, ok := exp.OnBar(ctx, model.BaseBar{Time: 92959, Open: 1, High: 2, Low: 0, Close: 1})
	assert.False(t, ok)
	_, ok = exp.OnBar(ctx, model.BaseBar{Time: 93000, Open: 1, High: 2, Low: 0, Close: 1})
	assert.True(t, ok)
	_, ok = exp.OnBar(ctx, model.BaseBar{Time: 93100, Open: 1, High: 2, Low: 0, Close: 1})
	assert.False(t, ok)

	s := exp.Stats()
	assert.Equal(t, int64(3), s.BarsSeen)
	assert.Equal(t, int64(2), s.BarsSkipped)
	assert.Equal(t, int64(1), s.BarsProcessed)
	assert.Equal(t, int64(1), engine.Ingested())
}

func TestExporter_WithoutPersistence(t *testing.T) {
	engine, err := feature.NewEngine(feature.Config{RequiredBars: 3})
	require.NoError(t, err)

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	now := start
	exp := NewExporter(engine, WithPrintRows(true), WithClock(func() time.Time { return now }))

	ctx := context.Background()
	for _, b := range syntheticBars(10) {
		exp.OnBar(ctx, b)
		now = now.Add(time.Second)
	}
	require.NoError(t, exp.Idle(ctx))
	require.NoError(t, exp.Close(ctx))

	s := exp.Stats()
	assert.Equal(t, int64(8), s.RowsEmitted)
	assert.Equal(t, 10*time.Second, s.Elapsed)
	assert.InDelta(t, 1.0, s.BarsPerSecond(), 1e-9)
}

func TestExporter_IdleCommitsTail(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	w, err := store.NewWriter(backend, model.FeatureShape, store.WriterConfig{
		Table:          store.DefaultTable,
		IdleTailCommit: 15 * time.Second,
	}, store.WithClock(clock))
	require.NoError(t, err)

	mgr, err := sink.NewManager(ctx, w, sink.ControllerConfig{FlushSize: 1000, FlushInterval: time.Minute}, sink.WithClock(clock))
	require.NoError(t, err)

	engine, err := feature.NewEngine(feature.Config{RequiredBars: 20})
	require.NoError(t, err)

	exp := NewExporter(engine, WithSink(mgr), WithClock(clock))
	for _, b := range syntheticBars(30) {
		exp.OnBar(ctx, b)
	}
	assert.Equal(t, 11, mgr.Pending())

	// flush interval elapses on a quiet stream; rows are appended but open
	now = now.Add(61 * time.Second)
	require.NoError(t, exp.Idle(ctx))
	assert.Zero(t, mgr.Pending())
	assert.Empty(t, backend.Commits(store.DefaultTable))

	// still inside the idle tail
	now = now.Add(10 * time.Second)
	require.NoError(t, exp.Idle(ctx))
	assert.Empty(t, backend.Commits(store.DefaultTable))

	now = now.Add(6 * time.Second)
	require.NoError(t, exp.Idle(ctx))
	assert.Equal(t, []int{11}, backend.Commits(store.DefaultTable))
	assert.Len(t, backend.Rows(store.DefaultTable), 11)

	require.NoError(t, exp.Close(ctx))
	assert.Equal(t, []int{11}, backend.Commits(store.DefaultTable))
	assert.True(t, backend.Closed())
}
