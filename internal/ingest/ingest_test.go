package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npbstats/internal/domain"
	"npbstats/internal/source"
	"npbstats/internal/store"
)

// stubProvider serves canned months keyed by "league/year-month" and fails
// for anything else.
type stubProvider struct {
	months map[string]*domain.RawMonth
	err    error
}

func (p *stubProvider) FetchMonth(_ context.Context, league domain.League, year int, month string, opts source.FetchOptions) (*domain.RawMonth, error) {
	if p.err != nil {
		return nil, p.err
	}
	key := fmt.Sprintf("%s/%d-%s", league, year, month)
	m, ok := p.months[key]
	if !ok {
		return &domain.RawMonth{League: league, Year: year, Month: month}, nil
	}
	if opts.GameID != "" {
		filtered := *m
		filtered.Games = nil
		for _, g := range m.Games {
			if g.GameID == opts.GameID {
				filtered.Games = append(filtered.Games, g)
			}
		}
		return &filtered, nil
	}
	return m, nil
}

func openTestStore(t *testing.T) *store.HistoryStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "db_history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func aprilMonth() *domain.RawMonth {
	return &domain.RawMonth{
		League: domain.LeagueFirst,
		Year:   2023,
		Month:  "04",
		Games: []domain.Game{
			{GameID: "g1", Date: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
				League: domain.LeagueFirst, HomeTeam: "Hanshin Tigers", AwayTeam: "Yomiuri Giants",
				HomeScore: 2, AwayScore: 1, Venue: "Koshien", Status: domain.GameFinal},
		},
		Batting: []domain.BattingLine{
			{GameID: "g1", PlayerID: "p1", Team: "Hanshin Tigers", PlateAppearances: 4, AtBats: 4, Hits: 1},
		},
		Pitching: []domain.PitchingLine{
			{GameID: "g1", PlayerID: "p2", Team: "Yomiuri Giants", Outs: 24, BattersFaced: 30, Hits: 5},
		},
	}
}

func TestRunStagesMonth(t *testing.T) {
	s := openTestStore(t)
	p := &stubProvider{months: map[string]*domain.RawMonth{"first/2023-04": aprilMonth()}}
	mi := New(p, s, Options{})

	counts, err := mi.Run(context.Background(), s.Handle(), domain.LeagueFirst, 2023, "04")
	require.NoError(t, err)

	assert.Equal(t, store.StageCounts{Games: 1, Batting: 1, Pitching: 1}, counts)
}

func TestRunNormalizesTeamCodes(t *testing.T) {
	s := openTestStore(t)
	p := &stubProvider{months: map[string]*domain.RawMonth{"first/2023-04": aprilMonth()}}
	mi := New(p, s, Options{TeamCodes: map[string]string{
		"Hanshin Tigers": "T",
		"Yomiuri Giants": "G",
	}})

	_, err := mi.Run(context.Background(), s.Handle(), domain.LeagueFirst, 2023, "04")
	require.NoError(t, err)

	var home, away string
	err = s.Handle().QueryRowContext(context.Background(),
		"SELECT home_team, away_team FROM staging_games WHERE game_id = ?", "g1").Scan(&home, &away)
	require.NoError(t, err)
	assert.Equal(t, "T", home)
	assert.Equal(t, "G", away)
}

func TestRunFetchFailurePropagates(t *testing.T) {
	s := openTestStore(t)
	p := &stubProvider{err: errors.New("source unreachable")}
	mi := New(p, s, Options{})

	_, err := mi.Run(context.Background(), s.Handle(), domain.LeagueFirst, 2023, "04")
	require.Error(t, err, "a failed fetch must fail the month, never stage empty data")
	assert.Contains(t, err.Error(), "source unreachable")
}

func TestRunEmptyMonthIsClean(t *testing.T) {
	s := openTestStore(t)
	p := &stubProvider{}
	mi := New(p, s, Options{})

	counts, err := mi.Run(context.Background(), s.Handle(), domain.LeagueFirst, 2023, "11")
	require.NoError(t, err)
	assert.Equal(t, store.StageCounts{}, counts)
}

func TestRunArchivesStagedMonth(t *testing.T) {
	s := openTestStore(t)
	archiveDir := t.TempDir()
	w := store.NewArchiveWriter(archiveDir)
	p := &stubProvider{months: map[string]*domain.RawMonth{"first/2023-04": aprilMonth()}}
	mi := New(p, s, Options{Archive: w})

	_, err := mi.Run(context.Background(), s.Handle(), domain.LeagueFirst, 2023, "04")
	require.NoError(t, err)

	games, err := w.ReadGames(domain.LeagueFirst, 2023, "04")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "g1", games[0].GameID)
}

func TestRunGameIDFilter(t *testing.T) {
	s := openTestStore(t)
	month := aprilMonth()
	month.Games = append(month.Games, domain.Game{
		GameID: "g2", Date: time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC),
		League: domain.LeagueFirst, HomeTeam: "C", AwayTeam: "D",
		Venue: "Mazda", Status: domain.GameScheduled,
	})
	p := &stubProvider{months: map[string]*domain.RawMonth{"first/2023-04": month}}
	mi := New(p, s, Options{GameID: "g2"})

	counts, err := mi.Run(context.Background(), s.Handle(), domain.LeagueFirst, 2023, "04")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Games)
}
