package gap

import "math"

// NeutralScore is returned when there is nothing to score. Callers should
// treat it as a low-confidence result rather than a failure.
const NeutralScore = 50.0

// ComputeScore weights met skills fully and weak skills by half over total,
// rounded to two decimals and kept within [0, 100].
func ComputeScore(met, weak, total int) float64 {
	if total <= 0 {
		return NeutralScore
	}
	score := float64(met*100+weak*50) / float64(total)
	score = math.Round(score*100) / 100
	return math.Max(0, math.Min(100, score))
}

// Score scores bucketed items. The denominator is requiredCount when
// positive, otherwise the number of items.
func Score(b Buckets, requiredCount int) float64 {
	total := requiredCount
	if total <= 0 {
		total = len(b.Met) + len(b.Missing) + len(b.Weak)
	}
	return ComputeScore(len(b.Met), len(b.Weak), total)
}
