package game

import (
	"math"
	"testing"
)

func TestHouseEdgeGenerator_Bounds(t *testing.T) {
	gen := NewHouseEdgeGenerator(0.05, 1000000)

	for i := 0; i < 10000; i++ {
		cp := gen.CrashPoint()
		if cp < MinMultiplier {
			t.Fatalf("crash point %v below minimum %v", cp, MinMultiplier)
		}
		if cp > 1000000 {
			t.Fatalf("crash point %v above maximum", cp)
		}
		cents := cp * 100
		if math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Fatalf("crash point %v not aligned to cents", cp)
		}
	}
}

func TestHouseEdgeGenerator_MaxClamp(t *testing.T) {
	gen := NewHouseEdgeGenerator(0.05, 10)

	for i := 0; i < 10000; i++ {
		if cp := gen.CrashPoint(); cp > 10 {
			t.Fatalf("crash point %v exceeds configured maximum 10", cp)
		}
	}
}

// TestHouseEdgeGenerator_PayoutRatio checks that the realized payout ratio
// for a fixed cashout target converges to 1 minus the house edge. A player
// always cashing out at 2.0x wins 2x their stake whenever the crash point
// clears 2.0, so the expected return per unit staked should be about 0.95.
func TestHouseEdgeGenerator_PayoutRatio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping convergence test in short mode")
	}

	const (
		edge   = 0.05
		target = 2.0
		draws  = 200000
	)
	gen := NewHouseEdgeGenerator(edge, 1000000)

	var returned float64
	for i := 0; i < draws; i++ {
		if gen.CrashPoint() >= target {
			returned += target
		}
	}
	ratio := returned / draws

	want := 1.0 - edge
	if math.Abs(ratio-want) > 0.02 {
		t.Errorf("payout ratio = %v, want about %v", ratio, want)
	}
}

func TestHouseEdgeGenerator_InstantCrashRate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping convergence test in short mode")
	}

	const (
		edge  = 0.05
		draws = 200000
	)
	gen := NewHouseEdgeGenerator(edge, 1000000)

	instant := 0
	for i := 0; i < draws; i++ {
		if gen.CrashPoint() == MinMultiplier {
			instant++
		}
	}
	rate := float64(instant) / draws

	// Instant crashes come from draws below the edge plus the sliver of
	// draws whose computed point floors back down to 1.00.
	if rate < edge/2 || rate > edge*3 {
		t.Errorf("instant crash rate = %v, want near %v", rate, edge)
	}
}

func BenchmarkCrashPoint(b *testing.B) {
	gen := NewHouseEdgeGenerator(0.05, 1000000)
	for i := 0; i < b.N; i++ {
		gen.CrashPoint()
	}
}
