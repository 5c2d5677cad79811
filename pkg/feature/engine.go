package feature

import (
	"errors"
	"fmt"

	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/window"
)

// ErrInvalidConfig is returned for an unusable engine configuration
var ErrInvalidConfig = errors.New("feature: invalid configuration")

// Config holds configuration for the feature engine
type Config struct {
	RequiredBars int     // Bars needed before the first feature row (warm-up)
	Tolerance    float64 // Division guard (defaults to DefaultTolerance if 0)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		RequiredBars: 20,
		Tolerance:    DefaultTolerance,
	}
}

// Engine turns a stream of bars into feature records using bounded
// trailing windows. It is not safe for concurrent use; bars must be
// ingested from a single goroutine in time order.
type Engine struct {
	requiredBars int
	tolerance    float64

	bars *window.RingBuffer[model.BaseBar]
	fast *window.RingBuffer[float64]
	slow *window.RingBuffer[float64]

	ready    bool
	ingested int64
	emitted  int64
}

// NewEngine creates a new feature engine with the given configuration
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.RequiredBars < 1 {
		return nil, fmt.Errorf("required bars must be at least 1, got %d: %w", cfg.RequiredBars, ErrInvalidConfig)
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	// One extra slot so the lag-1 statistics see a full window after warm-up
	capacity := cfg.RequiredBars + 1

	bars, err := window.NewRingBuffer[model.BaseBar](capacity)
	if err != nil {
		return nil, err
	}
	fast, err := window.NewRingBuffer[float64](capacity)
	if err != nil {
		return nil, err
	}
	slow, err := window.NewRingBuffer[float64](capacity)
	if err != nil {
		return nil, err
	}

	return &Engine{
		requiredBars: cfg.RequiredBars,
		tolerance:    tolerance,
		bars:         bars,
		fast:         fast,
		slow:         slow,
	}, nil
}

// Ingest adds a bar to the trailing windows and returns its feature record
// once the warm-up period is complete
func (e *Engine) Ingest(bar model.BaseBar) (model.FeatureRecord, bool) {
	e.bars.Push(bar)
	e.fast.Push(bar.FastAverage)
	e.slow.Push(bar.SlowAverage)
	e.ingested++

	if !e.ready && e.bars.Len() >= e.requiredBars {
		e.ready = true
	}
	if !e.ready {
		return model.FeatureRecord{}, false
	}

	e.emitted++
	return model.NewFeatureRecord(bar, e.compute(bar)), true
}

// compute derives all features for the bar that was just ingested
func (e *Engine) compute(bar model.BaseBar) model.Features {
	fastSeries := e.fast.Values()
	slowSeries := e.slow.Values()

	var fastAuto, slowAuto float64
	if len(fastSeries) > 1 {
		fastAuto = Autocorrelation(fastSeries, 1, e.tolerance)
	}
	if len(slowSeries) > 1 {
		slowAuto = Autocorrelation(slowSeries, 1, e.tolerance)
	}

	return model.Features{
		FastDistance:        Distance(bar.FastAverage, bar.Close, e.tolerance) * DistanceScale,
		FastAutocorrelation: fastAuto,
		FastSlope:           Slope(fastSeries, e.tolerance),
		SlowDistance:        Distance(bar.SlowAverage, bar.Close, e.tolerance) * DistanceScale,
		SlowAutocorrelation: slowAuto,
		OpenLocationValue:   BarLocation(bar.Open, bar, e.tolerance),
		CloseLocationValue:  BarLocation(bar.Close, bar, e.tolerance),
	}
}

// Ready returns true once the warm-up period is complete
func (e *Engine) Ready() bool {
	return e.ready
}

// RequiredBars returns the warm-up length
func (e *Engine) RequiredBars() int {
	return e.requiredBars
}

// Ingested returns the number of bars seen
func (e *Engine) Ingested() int64 {
	return e.ingested
}

// Emitted returns the number of feature records produced
func (e *Engine) Emitted() int64 {
	return e.emitted
}

// ProcessBars ingests a batch of bars and returns all produced records
func (e *Engine) ProcessBars(bars []model.BaseBar) []model.FeatureRecord {
	var records []model.FeatureRecord

	for _, b := range bars {
		if r, ok := e.Ingest(b); ok {
			records = append(records, r)
		}
	}

	return records
}
