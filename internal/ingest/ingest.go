// Package ingest loads one league-month of raw source data into the history
// database's staging tables.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"npbstats/internal/domain"
	"npbstats/internal/source"
	"npbstats/internal/store"
)

// Options tune a MonthIngester beyond its required collaborators.
type Options struct {
	// TeamCodes maps source display names to canonical team codes. Nil
	// leaves names as scraped.
	TeamCodes map[string]string
	// Archive, when non-nil, snapshots every staged month to Parquet.
	Archive *store.ArchiveWriter
	// GameID restricts ingestion to a single game.
	GameID string
	Logger *slog.Logger
}

// MonthIngester fetches a league-month from the Provider and stages it.
// It performs no permanent writes; the anti-join upsert is the caller's
// responsibility so staging and upserting share one transaction.
type MonthIngester struct {
	provider source.Provider
	store    *store.HistoryStore
	opts     Options
	log      *slog.Logger
}

// New creates a MonthIngester.
func New(p source.Provider, s *store.HistoryStore, opts Options) *MonthIngester {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &MonthIngester{
		provider: p,
		store:    s,
		opts:     opts,
		log:      log.With("component", "ingest"),
	}
}

// Run fetches, normalizes, and stages one league-month through q (the
// caller's transaction or the bare handle). A fetch failure is returned as
// an error; a month the source answers with zero games stages cleanly as
// empty. The two are never conflated.
func (mi *MonthIngester) Run(ctx context.Context, q store.Querier, league domain.League, year int, month string) (store.StageCounts, error) {
	var counts store.StageCounts

	m, err := mi.provider.FetchMonth(ctx, league, year, month, source.FetchOptions{GameID: mi.opts.GameID})
	if err != nil {
		return counts, fmt.Errorf("ingesting %s %d-%s: %w", league, year, month, err)
	}

	mi.normalizeTeams(m)

	if err := mi.store.ResetStaging(ctx, q); err != nil {
		return counts, fmt.Errorf("ingesting %s %d-%s: %w", league, year, month, err)
	}
	counts, err = mi.store.StageMonth(ctx, q, m)
	if err != nil {
		return counts, fmt.Errorf("ingesting %s %d-%s: %w", league, year, month, err)
	}

	if mi.opts.Archive != nil {
		if err := mi.opts.Archive.WriteMonth(m); err != nil {
			return counts, fmt.Errorf("ingesting %s %d-%s: %w", league, year, month, err)
		}
	}

	if len(m.Games) == 0 {
		mi.log.Info("no games this month", "league", league, "year", year, "month", month)
	} else {
		mi.log.Info("month staged", "league", league, "year", year, "month", month,
			"games", counts.Games, "batting", counts.Batting, "pitching", counts.Pitching)
	}
	return counts, nil
}

// normalizeTeams rewrites scraped team names to canonical codes wherever the
// team master knows them.
func (mi *MonthIngester) normalizeTeams(m *domain.RawMonth) {
	if len(mi.opts.TeamCodes) == 0 {
		return
	}
	code := func(name string) string {
		if c, ok := mi.opts.TeamCodes[name]; ok {
			return c
		}
		return name
	}
	for i := range m.Games {
		m.Games[i].HomeTeam = code(m.Games[i].HomeTeam)
		m.Games[i].AwayTeam = code(m.Games[i].AwayTeam)
	}
	for i := range m.Batting {
		m.Batting[i].Team = code(m.Batting[i].Team)
	}
	for i := range m.Pitching {
		m.Pitching[i].Team = code(m.Pitching[i].Team)
	}
}
