package model

// FeatureRecord is the immutable output row for one qualifying bar.
// It carries the raw bar fields through and adds the derived features.
type FeatureRecord struct {
	Time   int32   `json:"time"`
	Day    int32   `json:"day"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`

	FastDistance        float64 `json:"fast_distance"`        // close vs fast average, percent
	FastAutocorrelation float64 `json:"fast_autocorrelation"` // lag-1 over the fast average window
	FastSlope           float64 `json:"fast_slope"`           // range-normalized regression slope
	SlowDistance        float64 `json:"slow_distance"`        // close vs slow average, percent
	SlowAutocorrelation float64 `json:"slow_autocorrelation"` // lag-1 over the slow average window
	OpenLocationValue   float64 `json:"open_location_value"`  // [-1, 1] when open is inside the range
	CloseLocationValue  float64 `json:"close_location_value"` // [-1, 1] when close is inside the range
}

// Features groups the derived values computed for a bar
type Features struct {
	FastDistance        float64
	FastAutocorrelation float64
	FastSlope           float64
	SlowDistance        float64
	SlowAutocorrelation float64
	OpenLocationValue   float64
	CloseLocationValue  float64
}

// NewFeatureRecord combines a bar with its derived features
func NewFeatureRecord(b BaseBar, f Features) FeatureRecord {
	return FeatureRecord{
		Time:   b.Time,
		Day:    b.Day,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,

		FastDistance:        f.FastDistance,
		FastAutocorrelation: f.FastAutocorrelation,
		FastSlope:           f.FastSlope,
		SlowDistance:        f.SlowDistance,
		SlowAutocorrelation: f.SlowAutocorrelation,
		OpenLocationValue:   f.OpenLocationValue,
		CloseLocationValue:  f.CloseLocationValue,
	}
}
