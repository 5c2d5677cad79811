package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/etna/pkg/model"
)

func TestEMA(t *testing.T) {
	e := NewEMA(3) // k = 0.5

	assert.Equal(t, 10.0, e.Update(10))
	assert.Equal(t, 15.0, e.Update(20))
	assert.Equal(t, 12.5, e.Update(10))
	assert.Equal(t, 12.5, e.Value())
}

func TestEMA_PeriodOne(t *testing.T) {
	e := NewEMA(0)
	e.Update(5)
	assert.Equal(t, 9.0, e.Update(9))
}

func TestAverager_KeepsProvidedAverages(t *testing.T) {
	a := NewAverager(3, 5)

	got := a.Apply(model.BaseBar{Close: 10, FastAverage: 7})
	assert.Equal(t, 7.0, got.FastAverage)
	assert.Equal(t, 10.0, got.SlowAverage)
}

func TestFillAverages(t *testing.T) {
	bars := []model.BaseBar{{Close: 10}, {Close: 20}, {Close: 10}}
	ctx := context.Background()

	in, err := NewMemoryProvider(bars).Subscribe(ctx)
	require.NoError(t, err)

	var got []model.BaseBar
	for b := range FillAverages(ctx, in, NewAverager(3, 3)) {
		got = append(got, b)
	}
	require.Len(t, got, 3)
	assert.Equal(t, 10.0, got[0].FastAverage)
	assert.Equal(t, 15.0, got[1].FastAverage)
	assert.Equal(t, 12.5, got[2].SlowAverage)
}

func TestMemoryProvider_CancelStopsStream(t *testing.T) {
	p := NewMemoryProvider([]model.BaseBar{{Close: 1}, {Close: 2}, {Close: 3}})
	p.AddBars([]model.BaseBar{{Close: 4}})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Subscribe(ctx)
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, 1.0, first.Close)
	cancel()

	// the producer exits; drain whatever raced through
	for range ch {
	}
}
