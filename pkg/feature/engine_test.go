package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/etna/pkg/model"
)

func syntheticBar(i int) model.BaseBar {
	base := 100 + float64(i%17) - float64(i%5)*0.5
	return model.BaseBar{
		Time:        int32(90000 + i),
		Day:         20240102,
		Open:        base,
		High:        base + 2,
		Low:         base - 1.5,
		Close:       base + 0.75,
		Volume:      1000 + float64(i),
		FastAverage: base + 0.25,
		SlowAverage: base - 0.25,
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	_, err := NewEngine(Config{RequiredBars: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine(Config{RequiredBars: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngine_WarmUp(t *testing.T) {
	for _, required := range []int{1, 2, 5, 20} {
		e, err := NewEngine(Config{RequiredBars: required})
		require.NoError(t, err)

		for i := 0; i < required+30; i++ {
			_, ok := e.Ingest(syntheticBar(i))
			if i < required-1 {
				assert.False(t, ok, "required=%d bar=%d", required, i)
				assert.False(t, e.Ready())
			} else {
				assert.True(t, ok, "required=%d bar=%d", required, i)
				assert.True(t, e.Ready())
			}
		}

		assert.Equal(t, int64(required+30), e.Ingested())
		assert.Equal(t, int64(31), e.Emitted())
	}
}

func TestEngine_RecordCarriesBarFields(t *testing.T) {
	e, err := NewEngine(Config{RequiredBars: 3})
	require.NoError(t, err)

	var rec model.FeatureRecord
	var ok bool
	for i := 0; i < 3; i++ {
		rec, ok = e.Ingest(syntheticBar(i))
	}
	require.True(t, ok)

	bar := syntheticBar(2)
	assert.Equal(t, bar.Time, rec.Time)
	assert.Equal(t, bar.Day, rec.Day)
	assert.Equal(t, bar.Open, rec.Open)
	assert.Equal(t, bar.High, rec.High)
	assert.Equal(t, bar.Low, rec.Low)
	assert.Equal(t, bar.Close, rec.Close)
	assert.Equal(t, bar.Volume, rec.Volume)
}

func TestEngine_Features(t *testing.T) {
	e, err := NewEngine(Config{RequiredBars: 4})
	require.NoError(t, err)

	bars := []model.BaseBar{
		{Open: 100, High: 102, Low: 98, Close: 101, FastAverage: 100, SlowAverage: 100},
		{Open: 101, High: 103, Low: 99, Close: 102, FastAverage: 100, SlowAverage: 100},
		{Open: 102, High: 104, Low: 100, Close: 103, FastAverage: 100, SlowAverage: 100},
		{Open: 100, High: 104, Low: 100, Close: 104, FastAverage: 100, SlowAverage: 80},
	}

	records := e.ProcessBars(bars)
	require.Len(t, records, 1)
	rec := records[0]

	assert.InDelta(t, 4.0, rec.FastDistance, 1e-9)
	assert.InDelta(t, 30.0, rec.SlowDistance, 1e-9)
	assert.Zero(t, rec.FastAutocorrelation) // constant series
	assert.Zero(t, rec.FastSlope)
	assert.Equal(t, -1.0, rec.OpenLocationValue)
	assert.Equal(t, 1.0, rec.CloseLocationValue)
	// slow series [100 100 100 80]
	assert.NotZero(t, rec.SlowAutocorrelation)
}

func TestEngine_SingleBarWarmUp(t *testing.T) {
	e, err := NewEngine(Config{RequiredBars: 1})
	require.NoError(t, err)

	rec, ok := e.Ingest(model.BaseBar{Open: 1, High: 2, Low: 0, Close: 2, FastAverage: 1, SlowAverage: 1})
	require.True(t, ok)
	assert.Zero(t, rec.FastAutocorrelation)
	assert.Zero(t, rec.SlowAutocorrelation)
	assert.Zero(t, rec.FastSlope)
}

func TestEngine_TrendingAverageHasPositiveSlope(t *testing.T) {
	e, err := NewEngine(Config{RequiredBars: 10})
	require.NoError(t, err)

	var last model.FeatureRecord
	for i := 0; i < 25; i++ {
		v := 100 + float64(i)
		if r, ok := e.Ingest(model.BaseBar{Open: v, High: v + 1, Low: v - 1, Close: v, FastAverage: v, SlowAverage: v - 2}); ok {
			last = r
		}
	}

	assert.Greater(t, last.FastSlope, 0.0)
	assert.Greater(t, last.FastAutocorrelation, 0.0)
	assert.Greater(t, last.SlowDistance, 0.0)
	assert.Zero(t, last.FastDistance)
}

func TestBarLocation_MatchesLocationValue(t *testing.T) {
	bar := model.BaseBar{Open: 101, High: 110, Low: 100, Close: 107.5}
	assert.Equal(t, LocationValue(bar.Open, bar.High, bar.Low, DefaultTolerance), BarLocation(bar.Open, bar, DefaultTolerance))
	assert.InDelta(t, 0.5, BarLocation(bar.Close, bar, DefaultTolerance), 1e-12)
	assert.Zero(t, BarLocation(5, model.BaseBar{High: 5, Low: 5}, DefaultTolerance))
}
