package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name      string
		reference float64
		value     float64
		want      float64
	}{
		{"above reference", 100, 101, 0.01},
		{"below reference", 200, 150, -0.25},
		{"equal", 42, 42, 0},
		{"reference below tolerance", 1e-9, 5, 0},
		{"zero reference", 0, 5, 0},
		{"nan reference", math.NaN(), 5, 0},
		{"infinite value", 100, math.Inf(1), 0},
		{"nan value", 100, math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.reference, tt.value, DefaultTolerance), 1e-12)
		})
	}
}

func TestSlope(t *testing.T) {
	linear := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	slope := Slope(linear, DefaultTolerance)
	assert.Greater(t, slope, 0.0)
	// slope 1 per step, range 9
	assert.InDelta(t, 1.0/9.0, slope, 1e-12)

	shifted := make([]float64, len(linear))
	for i, v := range linear {
		shifted[i] = v + 1000
	}
	assert.InDelta(t, slope, Slope(shifted, DefaultTolerance), 1e-9)

	decreasing := []float64{10, 8, 6, 4, 2}
	assert.Less(t, Slope(decreasing, DefaultTolerance), 0.0)

	noisy := []float64{1, 3, 2, 4, 3, 5}
	assert.Greater(t, Slope(noisy, DefaultTolerance), 0.0)

	assert.Zero(t, Slope([]float64{5, 5, 5, 5}, DefaultTolerance))
	assert.Zero(t, Slope([]float64{5}, DefaultTolerance))
	assert.Zero(t, Slope(nil, DefaultTolerance))
}

func TestSlope_ScaleInvariant(t *testing.T) {
	base := []float64{1, 4, 2, 8, 5, 7}
	scaled := make([]float64, len(base))
	for i, v := range base {
		scaled[i] = v * 250
	}
	assert.InDelta(t, Slope(base, DefaultTolerance), Slope(scaled, DefaultTolerance), 1e-12)
}

func TestAutocorrelation(t *testing.T) {
	assert.Zero(t, Autocorrelation([]float64{5, 5, 5, 5, 5}, 1, DefaultTolerance))
	assert.Zero(t, Autocorrelation([]float64{1}, 1, DefaultTolerance))
	assert.Zero(t, Autocorrelation([]float64{1, 2}, 2, DefaultTolerance))
	assert.Zero(t, Autocorrelation(nil, 1, DefaultTolerance))

	// mean 0, denominator 4, numerator -3
	alternating := []float64{1, -1, 1, -1}
	assert.InDelta(t, -0.75, Autocorrelation(alternating, 1, DefaultTolerance), 1e-12)

	trending := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Greater(t, Autocorrelation(trending, 1, DefaultTolerance), 0.5)

	// lag 2 on a period-2 series is perfectly in phase
	assert.Greater(t, Autocorrelation(alternating, 2, DefaultTolerance), 0.0)
}

func TestLocationValue(t *testing.T) {
	assert.Equal(t, 1.0, LocationValue(110, 110, 100, DefaultTolerance))
	assert.Equal(t, -1.0, LocationValue(100, 110, 100, DefaultTolerance))
	assert.Equal(t, 0.0, LocationValue(105, 110, 100, DefaultTolerance))
	assert.Equal(t, 0.0, LocationValue(100, 100, 100, DefaultTolerance))
	assert.InDelta(t, 0.5, LocationValue(107.5, 110, 100, DefaultTolerance), 1e-12)
}

func TestLocationValue_Bounded(t *testing.T) {
	low, high := 95.25, 104.75
	for i := 0; i <= 100; i++ {
		price := low + (high-low)*float64(i)/100
		v := LocationValue(price, high, low, DefaultTolerance)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
