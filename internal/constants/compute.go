// Package constants recomputes the year-scoped league coefficient sets
// (wOBA weights, park factors), persists them as JSON snapshots, and guards
// year-over-year coefficient drift.
package constants

import (
	"context"
	"fmt"
	"time"

	"npbstats/internal/domain"
	"npbstats/internal/store"
)

// Linear-weight run values relative to an out. These are the stable
// sabermetric base values; the year-to-year variation comes entirely from
// the scale factor derived from that season's league totals.
var baseRunValues = domain.WOBAWeights{
	Walk:       0.690,
	HitByPitch: 0.722,
	Single:     0.888,
	Double:     1.271,
	Triple:     1.616,
	HomeRun:    2.101,
}

// Compute derives the league constants of one league-year from the
// permanent tables. The base run values are scaled so that league wOBA
// equals league OBP, per the standard wOBA construction.
func Compute(ctx context.Context, s *store.HistoryStore, league domain.League, year int) (*domain.LeagueConstants, error) {
	totals, err := s.BattingTotals(ctx, league, year)
	if err != nil {
		return nil, err
	}
	if totals.PlateAppearances == 0 {
		return nil, fmt.Errorf("no batting data for %s %d", league, year)
	}

	// wOBA denominator: AB + uBB + SF + HBP.
	unintentionalWalks := totals.Walks - totals.IntentionalWalks
	wobaDenom := float64(totals.AtBats + unintentionalWalks + totals.SacFlies + totals.HitByPitch)
	if wobaDenom == 0 {
		return nil, fmt.Errorf("degenerate wOBA denominator for %s %d", league, year)
	}

	rawNumerator := baseRunValues.Walk*float64(unintentionalWalks) +
		baseRunValues.HitByPitch*float64(totals.HitByPitch) +
		baseRunValues.Single*float64(totals.Singles()) +
		baseRunValues.Double*float64(totals.Doubles) +
		baseRunValues.Triple*float64(totals.Triples) +
		baseRunValues.HomeRun*float64(totals.HomeRuns)
	rawWOBA := rawNumerator / wobaDenom

	obpDenom := float64(totals.AtBats + totals.Walks + totals.HitByPitch + totals.SacFlies)
	leagueOBP := float64(totals.Hits+totals.Walks+totals.HitByPitch) / obpDenom

	if rawWOBA == 0 {
		return nil, fmt.Errorf("degenerate raw wOBA for %s %d", league, year)
	}
	scale := leagueOBP / rawWOBA

	games, err := s.GameCount(ctx, league, year)
	if err != nil {
		return nil, err
	}

	parkFactors, err := computeParkFactors(ctx, s, league, year)
	if err != nil {
		return nil, err
	}

	return &domain.LeagueConstants{
		Year:   year,
		League: league,
		WOBA: domain.WOBAWeights{
			Walk:       baseRunValues.Walk * scale,
			HitByPitch: baseRunValues.HitByPitch * scale,
			Single:     baseRunValues.Single * scale,
			Double:     baseRunValues.Double * scale,
			Triple:     baseRunValues.Triple * scale,
			HomeRun:    baseRunValues.HomeRun * scale,
		},
		WOBAScale:        scale,
		LeagueOBP:        leagueOBP,
		PlateAppearances: totals.PlateAppearances,
		Games:            games,
		ParkFactors:      parkFactors,
		ComputedAt:       time.Now().UTC(),
	}, nil
}

// computeParkFactors returns each venue's run rate relative to the league
// average. Venues with fewer than five games are omitted; a single slugfest
// would dominate their factor.
func computeParkFactors(ctx context.Context, s *store.HistoryStore, league domain.League, year int) (map[string]float64, error) {
	venues, err := s.VenueRunTotals(ctx, league, year)
	if err != nil {
		return nil, err
	}

	var leagueGames, leagueRuns int64
	for _, vr := range venues {
		leagueGames += vr.Games
		leagueRuns += vr.Runs
	}
	if leagueGames == 0 || leagueRuns == 0 {
		return nil, nil
	}
	leagueRate := float64(leagueRuns) / float64(leagueGames)

	factors := make(map[string]float64)
	for venue, vr := range venues {
		if vr.Games < 5 {
			continue
		}
		factors[venue] = (float64(vr.Runs) / float64(vr.Games)) / leagueRate
	}
	return factors, nil
}
