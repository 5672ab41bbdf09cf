// Package source fetches raw NPB game and box-score data for a
// league-month and parses it into domain records.
package source

import (
	"context"

	"npbstats/internal/domain"
)

// FetchOptions narrows a month fetch. GameID, when set, restricts the fetch
// to a single game (schedule row + its box score).
type FetchOptions struct {
	GameID string
}

// Provider produces the raw records of one league-month.
//
// The failure contract matters more than the data shape: a Provider must
// return an error whenever it could not determine the month's games. A
// *RawMonth with zero games and a nil error means the source answered and
// the month genuinely had no games (off-days, cancelled slates). Callers
// must never substitute empty data for a failed fetch.
type Provider interface {
	FetchMonth(ctx context.Context, league domain.League, year int, month string, opts FetchOptions) (*domain.RawMonth, error)
}
