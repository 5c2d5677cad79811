package data

import (
	"context"

	"github.com/tunogya/etna/pkg/model"
)

// EMA is an exponential moving average seeded with its first input
type EMA struct {
	k      float64
	value  float64
	primed bool
}

// NewEMA creates an EMA over period bars (period < 1 is treated as 1)
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{k: 2 / float64(period+1)}
}

// Update adds v and returns the new average
func (e *EMA) Update(v float64) float64 {
	if !e.primed {
		e.value = v
		e.primed = true
		return v
	}
	e.value = v*e.k + e.value*(1-e.k)
	return e.value
}

// Value returns the current average
func (e *EMA) Value() float64 {
	return e.value
}

// Averager supplies fast and slow averages of the close for sources that
// do not carry them
type Averager struct {
	fast *EMA
	slow *EMA
}

// NewAverager creates an averager with the given EMA periods
func NewAverager(fastPeriod, slowPeriod int) *Averager {
	return &Averager{fast: NewEMA(fastPeriod), slow: NewEMA(slowPeriod)}
}

// Apply updates both averages with bar's close and fills whichever
// average the bar lacks (zero)
func (a *Averager) Apply(bar model.BaseBar) model.BaseBar {
	fast := a.fast.Update(bar.Close)
	slow := a.slow.Update(bar.Close)
	if bar.FastAverage == 0 {
		bar.FastAverage = fast
	}
	if bar.SlowAverage == 0 {
		bar.SlowAverage = slow
	}
	return bar
}

// FillAverages passes bars from in to the returned channel, filling
// missing averages with a
func FillAverages(ctx context.Context, in <-chan model.BaseBar, a *Averager) <-chan model.BaseBar {
	out := make(chan model.BaseBar)
	go func() {
		defer close(out)
		for b := range in {
			select {
			case out <- a.Apply(b):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
