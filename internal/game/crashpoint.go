package game

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

const MinMultiplier = 1.00

// CrashPointGenerator draws one crash multiplier per round.
type CrashPointGenerator interface {
	CrashPoint() float64
}

// HouseEdgeGenerator draws crash points from the inverse-exponential
// distribution that pays back (1 - edge) of all stakes in expectation:
// a player cashing out at any fixed target x wins x with probability
// (1-edge)/x.
type HouseEdgeGenerator struct {
	edge float64
	max  float64
}

func NewHouseEdgeGenerator(edge, max float64) *HouseEdgeGenerator {
	return &HouseEdgeGenerator{edge: edge, max: max}
}

func (g *HouseEdgeGenerator) CrashPoint() float64 {
	h := randomFloat()

	// The bottom slice of the draw is an instant crash at 1.00x.
	if h < g.edge {
		return MinMultiplier
	}

	crash := (100.0 - g.edge*100.0) / (100.0 - h*100.0)
	crash = math.Floor(crash*100) / 100

	if crash < MinMultiplier {
		return MinMultiplier
	}
	if crash > g.max {
		return g.max
	}
	return crash
}

// randomFloat returns a uniform value in [0,1) from crypto/rand. The draw
// must not be seedable or predictable by players.
func randomFloat() float64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crashpoint: crypto/rand unavailable: " + err.Error())
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}
