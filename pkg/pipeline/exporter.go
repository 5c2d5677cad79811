package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/etna/pkg/feature"
	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/sink"
)

// RecordSink receives feature records
type RecordSink interface {
	Enqueue(ctx context.Context, rec model.FeatureRecord)
	Poll(ctx context.Context) error
	Close(ctx context.Context) error
	Summary() sink.Summary
}

// BarObserver is notified per bar; metrics.Metrics implements it
type BarObserver interface {
	BarIngested()
	BarSkipped()
	RowEmitted()
}

type nopBarObserver struct{}

func (nopBarObserver) BarIngested() {}
func (nopBarObserver) BarSkipped() {}
func (nopBarObserver) RowEmitted() {}

// Stats summarizes a run
type Stats struct {
	BarsSeen      int64
	BarsSkipped   int64
	BarsProcessed int64
	RowsEmitted   int64
	Elapsed       time.Duration
}

// BarsPerSecond returns the processing rate
func (s Stats) BarsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BarsProcessed) / s.Elapsed.Seconds()
}

// Option configures an Exporter
type Option func(*Exporter)

// WithSink enables persistence of emitted records
func WithSink(s RecordSink) Option {
	return func(e *Exporter) { e.sink = s }
}

// WithSession filters bars by time of day
func WithSession(f SessionFilter) Option {
	return func(e *Exporter) { e.session = f }
}

// WithPrintRows logs every emitted record
func WithPrintRows(on bool) Option {
	return func(e *Exporter) { e.printRows = on }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithBarObserver sets the per-bar observer
func WithBarObserver(o BarObserver) Option {
	return func(e *Exporter) { e.observer = o }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// Exporter feeds bars through the feature engine and hands the resulting
// records to the sink. OnBar must be called from a single goroutine.
type Exporter struct {
	engine    *feature.Engine
	sink      RecordSink
	session   SessionFilter
	printRows bool
	logger    zerolog.Logger
	observer  BarObserver
	now       func() time.Time

	stats   Stats
	started time.Time
}

// NewExporter creates an exporter around engine. Without WithSink records
// are computed but not persisted.
func NewExporter(engine *feature.Engine, opts ...Option) *Exporter {
	e := &Exporter{
		engine:   engine,
		logger:   zerolog.Nop(),
		observer: nopBarObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnBar processes one closed bar
func (e *Exporter) OnBar(ctx context.Context, bar model.BaseBar) (model.FeatureRecord, bool) {
	if e.started.IsZero() {
		e.started = e.now()
	}
	e.stats.BarsSeen++
	e.observer.BarIngested()

	if !e.session.Allows(bar.Time) {
		e.stats.BarsSkipped++
		e.observer.BarSkipped()
		return model.FeatureRecord{}, false
	}
	e.stats.BarsProcessed++

	rec, ok := e.engine.Ingest(bar)
	if !ok {
		return rec, false
	}
	e.stats.RowsEmitted++
	e.observer.RowEmitted()

	if e.printRows {
		e.logger.Info().
			Int32("day", rec.Day).
			Int32("time", rec.Time).
			Float64("close", rec.Close).
			Float64("fast_distance", rec.FastDistance).
			Float64("fast_autocorrelation", rec.FastAutocorrelation).
			Float64("fast_slope", rec.FastSlope).
			Float64("slow_distance", rec.SlowDistance).
			Float64("slow_autocorrelation", rec.SlowAutocorrelation).
			Float64("open_location_value", rec.OpenLocationValue).
			Float64("close_location_value", rec.CloseLocationValue).
			Msg("feature row")
	}

	if e.sink != nil {
		e.sink.Enqueue(ctx, rec)
	}
	return rec, true
}

// Idle gives the sink a chance to flush or commit on a quiet stream
func (e *Exporter) Idle(ctx context.Context) error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Poll(ctx)
}

// Stats returns the run statistics so far
func (e *Exporter) Stats() Stats {
	s := e.stats
	if !e.started.IsZero() {
		s.Elapsed = e.now().Sub(e.started)
	}
	return s
}

// Close shuts the sink down and logs the run statistics
func (e *Exporter) Close(ctx context.Context) error {
	s := e.Stats()
	e.logger.Info().
		Int64("bars_seen", s.BarsSeen).
		Int64("bars_skipped", s.BarsSkipped).
		Int64("bars_processed", s.BarsProcessed).
		Int64("rows_emitted", s.RowsEmitted).
		Dur("elapsed", s.Elapsed).
		Float64("bars_per_second", s.BarsPerSecond()).
		Msg("run finished")

	if e.sink == nil {
		return nil
	}
	return e.sink.Close(ctx)
}
