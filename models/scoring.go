// models/scoring.go - Server-authoritative scoring rule
package models

import "math"

// MaxStreakBonus caps the per-answer streak bonus.
const MaxStreakBonus = 500

// BaseScore computes the base points for a correct answer submitted at
// elapsedMs into a question with timeLimitMs and base points. The elapsed
// time is clamped to [0, timeLimitMs], which guarantees a floor of half the
// points: an answer at the buzzer (or a few ms past it) still scores 50 %.
func BaseScore(points, elapsedMs, timeLimitMs int) int {
	if timeLimitMs <= 0 {
		return points
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > timeLimitMs {
		elapsedMs = timeLimitMs
	}

	raw := math.Round(float64(points) * (1 - float64(elapsedMs)/(2*float64(timeLimitMs))))
	floor := math.Round(float64(points) / 2)
	if raw < floor {
		raw = floor
	}
	return int(raw)
}

// StreakBonus returns the bonus for a correct answer given the streak the
// player held before this answer. Awarded only on correct answers.
func StreakBonus(streakBefore int) int {
	if streakBefore <= 0 {
		return 0
	}
	bonus := streakBefore * 100
	if bonus > MaxStreakBonus {
		bonus = MaxStreakBonus
	}
	return bonus
}
