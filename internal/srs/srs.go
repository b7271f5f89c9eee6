// Package srs holds the spaced-repetition policy: a fixed ladder of review
// delays indexed by a card's interval rung. The policy is pure; callers own
// the clock and apply the results to their cards.
package srs

import "time"

// Ladder is the ordered, strictly increasing sequence of review delays.
// It is configuration, not derived state.
var Ladder = [7]time.Duration{
	5 * time.Second,
	25 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	time.Hour,
	5 * time.Hour,
	24 * time.Hour,
}

// Labels are the human-readable names for each rung, index-aligned with Ladder.
var Labels = [7]string{"5s", "25s", "2m", "10m", "1h", "5h", "1d"}

// Rungs is the number of rungs on the ladder.
const Rungs = len(Ladder)

// Clamp forces a rung index into the valid ladder range.
func Clamp(index int) int {
	if index < 0 {
		return 0
	}
	if index >= Rungs {
		return Rungs - 1
	}
	return index
}

// Advance maps a review outcome to the next rung and its delay. The rung
// saturates at the top of the ladder: repeated reviews at the last rung keep
// returning the last rung's delay.
func Advance(index int) (next int, delay time.Duration) {
	next = Clamp(index + 1)
	return next, Ladder[next]
}

// Delay returns the review delay for a rung.
func Delay(index int) time.Duration {
	return Ladder[Clamp(index)]
}

// Label returns the human-readable name for a rung.
func Label(index int) string {
	return Labels[Clamp(index)]
}

// DueAt computes the epoch-millisecond due time for a card placed on the
// given rung at the given instant.
func DueAt(now time.Time, index int) int64 {
	return now.UnixMilli() + Delay(index).Milliseconds()
}
