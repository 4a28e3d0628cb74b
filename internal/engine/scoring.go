package engine

import "math"

// Scores are the 0-100 metrics derived from timer telemetry.
type Scores struct {
	Accuracy     int
	Productivity int
}

// Score compares estimated against actual minutes and folds in focus and
// distractions. Callers validate inputs; focusRating nil means unrated.
func Score(estimatedMinutes, actualMinutes int, focusRating *int, distractions int) Scores {
	accuracy := 0
	if actualMinutes > 0 && estimatedMinutes > 0 {
		lo, hi := estimatedMinutes, actualMinutes
		if lo > hi {
			lo, hi = hi, lo
		}
		accuracy = int(math.Round(100 * float64(lo) / float64(hi)))
	}

	focus := 20.0
	if focusRating != nil {
		focus = float64(*focusRating) / 5 * 40
	}

	penalty := distractions * 5
	if penalty > 20 {
		penalty = 20
	}
	if penalty < 0 {
		penalty = 0
	}
	distraction := float64(20 - penalty)

	productivity := int(math.Round(0.4*float64(accuracy) + focus + distraction))
	return Scores{Accuracy: accuracy, Productivity: clamp(productivity, 0, 100)}
}

type multiplierTier struct {
	min        int
	multiplier float64
	message    string
}

var multiplierTiers = []multiplierTier{
	{90, 1.30, "Excellent performance! +30% XP bonus"},
	{80, 1.20, "Great performance! +20% XP bonus"},
	{70, 1.10, "Good performance! +10% XP bonus"},
	{60, 1.00, "Decent performance"},
	{50, 0.90, "Below target: -10% XP"},
	{40, 0.80, "Poor focus: -20% XP"},
	{0, 0.70, "Needs improvement: -30% XP"},
}

// PerformanceMultiplier maps a productivity score to its XP multiplier and
// message. An unscored quest earns x1.00 with no message.
func PerformanceMultiplier(productivity *int) (float64, string) {
	if productivity == nil {
		return 1.0, ""
	}
	for _, t := range multiplierTiers {
		if *productivity >= t.min {
			return t.multiplier, t.message
		}
	}
	last := multiplierTiers[len(multiplierTiers)-1]
	return last.multiplier, last.message
}

// FinalXP applies the performance multiplier to a base reward.
func FinalXP(base int, productivity *int) (int, float64, string) {
	mult, msg := PerformanceMultiplier(productivity)
	return int(math.Round(float64(base) * mult)), mult, msg
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
