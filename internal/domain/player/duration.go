package player

import "math"

// DefaultDurationThreshold is the duration, in seconds, above which a reported
// duration is accepted even if it is not larger than the stored one.
const DefaultDurationThreshold = 10.0

// DurationGate decides which reported durations are trusted.
// Streamed sources often report small or zero durations before settling.
type DurationGate struct {
	Threshold float64
}

// NewDurationGate creates a gate with the given threshold in seconds.
func NewDurationGate(threshold float64) DurationGate {
	return DurationGate{Threshold: threshold}
}

// Accept reports whether reported should replace current.
// The stored duration never decreases within a session.
func (g DurationGate) Accept(reported, current float64) bool {
	if math.IsNaN(reported) || math.IsInf(reported, 0) || reported <= 0 {
		return false
	}
	if reported < current {
		return false
	}
	return reported > g.Threshold || reported > current
}
