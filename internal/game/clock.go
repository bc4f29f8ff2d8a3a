package game

import (
	"math"
	"time"
)

// MultiplierAt returns the multiplier after elapsed time at growth rate k
// (multiplier gained per second). The value is floored to cents so a
// broadcast never shows more than settlement pays.
func MultiplierAt(elapsed time.Duration, k float64) float64 {
	m := 1.0 + elapsed.Seconds()*k
	// The epsilon keeps float noise from flooring a cent boundary away.
	m = math.Floor(m*100+1e-9) / 100
	if m < MinMultiplier {
		return MinMultiplier
	}
	return m
}

// ElapsedFor inverts MultiplierAt: the elapsed time at which the raw curve
// reaches multiplier m. The crash transition is scheduled from this value
// instead of polling the ticker for approximate equality. Rounded up to the
// next nanosecond so the clock at this instant reads exactly m.
func ElapsedFor(m, k float64) time.Duration {
	if m <= MinMultiplier {
		return 0
	}
	return time.Duration(math.Ceil((m - MinMultiplier) / k * float64(time.Second)))
}

// roundToCent rounds a currency amount to the smallest unit.
func roundToCent(v float64) float64 {
	return math.Round(v*100) / 100
}
