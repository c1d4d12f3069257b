package player

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// ProgressPercent returns how far position is through duration, 0-100.
func ProgressPercent(position, duration float64) float64 {
	if duration <= 0 || math.IsInf(duration, 0) || math.IsNaN(position) {
		return 0
	}
	return math.Max(0, math.Min(position/duration*100, 100))
}
