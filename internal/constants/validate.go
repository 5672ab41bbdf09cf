package constants

import (
	"errors"
	"fmt"
	"math"

	"npbstats/internal/domain"
)

// ErrDeltaExceeded marks a coefficient jump beyond the league threshold.
// A sudden jump almost always means bad or incomplete source data for the
// year, so the batch halts rather than publish a poisoned constant set.
var ErrDeltaExceeded = errors.New("coefficient delta exceeds threshold")

// ValidateDelta compares the representative coefficient (the wOBA single
// weight) between two consecutive years and returns the relative change.
// The returned error wraps ErrDeltaExceeded when the change is above
// threshold (a fraction, e.g. 0.07 for 7%).
func ValidateDelta(prev, cur *domain.LeagueConstants, threshold float64) (float64, error) {
	if prev.WOBA.Single == 0 {
		return 0, fmt.Errorf("previous year %d has a zero single weight", prev.Year)
	}

	delta := math.Abs(cur.WOBA.Single-prev.WOBA.Single) / prev.WOBA.Single
	if delta > threshold {
		return delta, fmt.Errorf("%s single weight moved %.2f%% from %d to %d (threshold %.2f%%): %w",
			cur.League, delta*100, prev.Year, cur.Year, threshold*100, ErrDeltaExceeded)
	}
	return delta, nil
}
