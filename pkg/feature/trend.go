package feature

import "math"

// DefaultTolerance guards every division in this package
const DefaultTolerance = 1e-6

// DistanceScale converts a fractional distance into percent.
// Both fast and slow distances use it.
const DistanceScale = 100.0

// Distance returns (value - reference) / reference.
// It returns 0 when either input is NaN or infinite, or when reference is
// closer to zero than tolerance.
func Distance(reference, value, tolerance float64) float64 {
	if !isFinite(reference) || !isFinite(value) {
		return 0
	}
	if math.Abs(reference) < tolerance {
		return 0
	}
	return (value - reference) / reference
}

// Slope calculates the least-squares slope of series against its index,
// divided by the value range of the series
func Slope(series []float64, tolerance float64) float64 {
	if len(series) < 2 {
		return 0
	}

	n := float64(len(series))
	var sumX, sumY, sumXY, sumX2 float64
	lo, hi := series[0], series[0]

	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}

	denominator := n*sumX2 - sumX*sumX
	if math.Abs(denominator) < tolerance {
		return 0
	}

	valueRange := hi - lo
	if valueRange < tolerance {
		return 0
	}

	slope := (n*sumXY - sumX*sumY) / denominator
	return slope / valueRange
}

// Autocorrelation calculates the lag-k sample autocorrelation of series
func Autocorrelation(series []float64, lag int, tolerance float64) float64 {
	n := len(series)
	if lag < 0 || n <= lag {
		return 0
	}

	m := mean(series)

	var num, den float64
	for i := 0; i < n; i++ {
		d := series[i] - m
		den += d * d
		if i >= lag {
			num += d * (series[i-lag] - m)
		}
	}

	if math.Abs(den) < tolerance {
		return 0
	}
	return num / den
}

// mean calculates the arithmetic mean
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
