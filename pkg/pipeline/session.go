package pipeline

import (
	"fmt"
	"strconv"
)

// SessionFilter keeps bars whose time of day (HHMMSS) lies in
// [Start, End]. A disabled filter keeps everything.
type SessionFilter struct {
	Enabled bool
	Start   int32
	End     int32
}

// ParseHHMMSS parses a "093000" style time of day
func ParseHHMMSS(s string) (int32, error) {
	if len(s) != 6 {
		return 0, fmt.Errorf("time %q: want HHMMSS", s)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", s, err)
	}
	h, m, sec := v/10000, v/100%100, v%100
	if h > 23 || m > 59 || sec > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return int32(v), nil
}

// NewSessionFilter builds an enabled filter from HHMMSS strings
func NewSessionFilter(start, end string) (SessionFilter, error) {
	s, err := ParseHHMMSS(start)
	if err != nil {
		return SessionFilter{}, err
	}
	e, err := ParseHHMMSS(end)
	if err != nil {
		return SessionFilter{}, err
	}
	if e < s {
		return SessionFilter{}, fmt.Errorf("session end %s is before start %s", end, start)
	}
	return SessionFilter{Enabled: true, Start: s, End: e}, nil
}

// Allows reports whether a bar at time t is inside the session
func (f SessionFilter) Allows(t int32) bool {
	if !f.Enabled {
		return true
	}
	return t >= f.Start && t <= f.End
}
