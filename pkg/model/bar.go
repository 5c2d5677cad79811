package model

// BaseBar is one completed bar as delivered by the host, together with the
// moving averages the host computed for it.
type BaseBar struct {
	Time        int32   `json:"time"` // time of day, HHMMSS
	Day         int32   `json:"day"`  // YYYYMMDD
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	FastAverage float64 `json:"fast_average"`
	SlowAverage float64 `json:"slow_average"`
}

// Range returns the high-low range of the bar
func (b BaseBar) Range() float64 {
	return b.High - b.Low
}
