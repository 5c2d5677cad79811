package feature

import "github.com/tunogya/etna/pkg/model"

// LocationValue places price within the bar's high-low range:
// -1 at the low, 0 at the midpoint, +1 at the high.
// It returns 0 when the range is narrower than tolerance.
func LocationValue(price, high, low, tolerance float64) float64 {
	r := high - low
	if r < tolerance {
		return 0
	}
	return (2*price - high - low) / r
}

// BarLocation is LocationValue of price within bar
func BarLocation(price float64, bar model.BaseBar, tolerance float64) float64 {
	r := bar.Range()
	if r < tolerance {
		return 0
	}
	return (2*price - bar.High - bar.Low) / r
}
