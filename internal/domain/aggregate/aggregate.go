// Package aggregate computes weighted performance and accuracy metrics
// from an ordered list of a player's best scores.
//
// All functions are pure. Callers must pre-sort inputs descending by the
// per-score metric; ties keep their incoming order.
package aggregate

import (
	"math"

	"github.com/okian/rankforge/internal/domain/model"
)

// Decay-ladder constants.
const (
	decayFactor    = 0.95
	bonusScale     = 416.6667
	bonusDecay     = 0.9994
	accBonusFactor = 20.0
)

// Performance combines pre-sorted best scores into a single pp value:
// sum of pp_i * 0.95^i plus a diminishing bonus rewarding score volume.
func Performance(scores []*model.Score) float64 {
	if len(scores) == 0 {
		return 0
	}

	var weighted float64
	for i, s := range scores {
		weighted += s.PP * math.Pow(decayFactor, float64(i))
	}

	bonus := bonusScale * (1 - math.Pow(bonusDecay, float64(len(scores))))
	return weighted + bonus
}

// Accuracy combines pre-sorted best scores into a single accuracy value
// in the 0..1 range.
func Accuracy(scores []*model.Score) float64 {
	if len(scores) == 0 {
		return 0
	}

	var weighted float64
	for i, s := range scores {
		weighted += s.Acc * math.Pow(decayFactor, float64(i))
	}

	bonus := 100.0 / (accBonusFactor * (1 - math.Pow(decayFactor, float64(len(scores)))))
	return (weighted * bonus) / 100.0
}

// LegacyLadder applies the exponential-decay combination to per-score
// legacy weights. The weights themselves come from the external
// performance calculator; only the ladder is owned here.
func LegacyLadder(values []float64) float64 {
	var total float64
	for i, v := range values {
		total += v * math.Pow(decayFactor, float64(i))
	}
	return total
}

// RankedScore sums the total score of the given best-by-score set.
func RankedScore(scores []*model.Score) int64 {
	var total int64
	for _, s := range scores {
		total += s.TotalScore
	}
	return total
}

// SplitByMods partitions scores into the vanilla, relax and autopilot
// variant pools. Every score lands in exactly one pool; relax wins when
// both modifier bits are set.
func SplitByMods(scores []*model.Score) (vn, rx, ap []*model.Score) {
	for _, s := range scores {
		switch {
		case s.Mods&model.ModRelax != 0:
			rx = append(rx, s)
		case s.Mods&model.ModAutopilot != 0:
			ap = append(ap, s)
		default:
			vn = append(vn, s)
		}
	}
	return vn, rx, ap
}
