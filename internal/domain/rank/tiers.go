// Package rank implements the points-and-tier progression state machine.
package rank

import "github.com/okian/ascent/internal/domain/types"

// band describes one tier's point range and reward multiplier.
type band struct {
	tier       types.Tier
	minPoints  int
	multiplier float64
}

// bands partition [0, inf) into five contiguous ranges, ascending.
var bands = [...]band{
	{types.TierBronze, 0, 1.0},
	{types.TierSilver, 500, 1.5},
	{types.TierGold, 1000, 2.0},
	{types.TierPlatinum, 1500, 3.0},
	{types.TierDiamond, 2000, 5.0},
}

// TierFromPoints maps a points balance to its tier. Monotonic non-decreasing;
// negative input maps to the lowest tier.
func TierFromPoints(points int) types.Tier {
	tier := types.TierBronze
	for _, b := range bands {
		if points >= b.minPoints {
			tier = b.tier
		}
	}
	return tier
}

// Multiplier returns the reward/penalty multiplier for a tier.
func Multiplier(t types.Tier) float64 {
	for _, b := range bands {
		if b.tier == t {
			return b.multiplier
		}
	}
	return bands[0].multiplier
}

// MinPoints returns the lower bound of a tier's point band.
func MinPoints(t types.Tier) int {
	for _, b := range bands {
		if b.tier == t {
			return b.minPoints
		}
	}
	return 0
}
