package sim

import (
	"fmt"
	"math/rand"
	"time"
)

// JitterFunc returns the per-tick displacement in degrees.
type JitterFunc func() (dLat, dLon float64)

// DwellFunc returns the time-at-stop value shown for a vehicle this tick.
type DwellFunc func() time.Duration

// RandomJitter draws each axis uniformly from [-maxDeg, maxDeg].
func RandomJitter(rng *rand.Rand, maxDeg float64) JitterFunc {
	return func() (float64, float64) {
		return (rng.Float64()*2 - 1) * maxDeg, (rng.Float64()*2 - 1) * maxDeg
	}
}

// RandomDwell draws a whole number of minutes in [min, max].
func RandomDwell(rng *rand.Rand, min, max time.Duration) DwellFunc {
	lo := int(min / time.Minute)
	hi := int(max / time.Minute)
	if hi < lo {
		hi = lo
	}
	return func() time.Duration {
		return time.Duration(lo+rng.Intn(hi-lo+1)) * time.Minute
	}
}

// FixedJitter always moves by the same offset.
func FixedJitter(dLat, dLon float64) JitterFunc {
	return func() (float64, float64) { return dLat, dLon }
}

func FixedDwell(d time.Duration) DwellFunc {
	return func() time.Duration { return d }
}

// FormatDwell renders a dwell duration for display, e.g. "4 min".
func FormatDwell(d time.Duration) string {
	return fmt.Sprintf("%d min", int(d/time.Minute))
}
