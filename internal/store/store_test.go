package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npbstats/internal/domain"
)

func openTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db_history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMonth() *domain.RawMonth {
	date := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	return &domain.RawMonth{
		League: domain.LeagueFirst,
		Year:   2023,
		Month:  "04",
		Games: []domain.Game{
			{GameID: "20230401-T-G", Date: date, League: domain.LeagueFirst,
				HomeTeam: "T", AwayTeam: "G", HomeScore: 4, AwayScore: 2,
				Venue: "Koshien", Status: domain.GameFinal},
			{GameID: "20230402-C-D", Date: date.AddDate(0, 0, 1), League: domain.LeagueFirst,
				HomeTeam: "C", AwayTeam: "D", HomeScore: 1, AwayScore: 9,
				Venue: "Mazda", Status: domain.GameFinal},
		},
		Batting: []domain.BattingLine{
			{GameID: "20230401-T-G", PlayerID: "p100", Team: "T",
				PlateAppearances: 5, AtBats: 4, Hits: 2, Doubles: 1, Walks: 1, Runs: 1},
			{GameID: "20230401-T-G", PlayerID: "p200", Team: "G",
				PlateAppearances: 4, AtBats: 4, Hits: 1, HomeRuns: 1, Runs: 1, RunsBattedIn: 1},
			{GameID: "20230402-C-D", PlayerID: "p300", Team: "D",
				PlateAppearances: 5, AtBats: 5, Hits: 3, Triples: 1, Runs: 2},
		},
		Pitching: []domain.PitchingLine{
			{GameID: "20230401-T-G", PlayerID: "p900", Team: "T",
				Outs: 27, BattersFaced: 36, Hits: 5, Walks: 2, Strikeouts: 9, Runs: 2, EarnedRuns: 2},
			{GameID: "20230402-C-D", PlayerID: "p901", Team: "C",
				Outs: 15, BattersFaced: 28, Hits: 9, HomeRuns: 2, Runs: 7, EarnedRuns: 6},
		},
	}
}

func stageAndUpsert(t *testing.T, s *HistoryStore, m *domain.RawMonth) map[string]UpsertResult {
	t.Helper()
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, s.ResetStaging(ctx, tx))
	_, err = s.StageMonth(ctx, tx, m)
	require.NoError(t, err)

	results := make(map[string]UpsertResult)
	for _, table := range Tables() {
		res, err := s.UpsertNew(ctx, tx, table)
		require.NoError(t, err)
		results[table] = res
	}
	require.NoError(t, tx.Commit())
	return results
}

func TestStageMonthCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	counts, err := s.StageMonth(ctx, s.Handle(), testMonth())
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts.Games)
	assert.Equal(t, int64(3), counts.Batting)
	assert.Equal(t, int64(2), counts.Pitching)
}

func TestStageMonthCollapsesRepeatedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := testMonth()
	m.Games = append(m.Games, m.Games[0])
	m.Batting = append(m.Batting, m.Batting[0])

	counts, err := s.StageMonth(ctx, s.Handle(), m)
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts.Games, "repeated game rows must collapse on the staging PK")
	assert.Equal(t, int64(3), counts.Batting)
}

func TestUpsertNewIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := testMonth()

	first := stageAndUpsert(t, s, m)
	assert.Equal(t, int64(2), first[TableGames].Inserted)
	assert.Equal(t, int64(0), first[TableGames].Duplicates)
	assert.Equal(t, int64(3), first[TableBatting].Inserted)
	assert.Equal(t, int64(2), first[TablePitching].Inserted)

	before, err := s.TableCount(ctx, TableGames)
	require.NoError(t, err)

	// Second run of the same month: everything is a duplicate.
	second := stageAndUpsert(t, s, m)
	for _, table := range Tables() {
		res := second[table]
		assert.Zero(t, res.Inserted, "second run must insert nothing into %s", table)
		assert.Equal(t, res.Staged, res.Duplicates, "all staged %s rows are duplicates", table)
	}

	after, err := s.TableCount(ctx, TableGames)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpsertNeverOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stageAndUpsert(t, s, testMonth())

	// Re-ingest the same game with a "corrected" score. The anti-join must
	// skip it, leaving the original row untouched.
	changed := testMonth()
	changed.Games[0].HomeScore = 99
	stageAndUpsert(t, s, changed)

	var homeScore int
	err := s.Handle().QueryRowContext(ctx,
		"SELECT home_score FROM games WHERE game_id = ?", "20230401-T-G").Scan(&homeScore)
	require.NoError(t, err)
	assert.Equal(t, 4, homeScore)
}

func TestCountNewDoesNotMutate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := testMonth()

	stageAndUpsert(t, s, m)

	// Stage a month that is half old, half new, then dry-run count.
	next := testMonth()
	next.Games = append(next.Games, domain.Game{
		GameID: "20230415-H-F", Date: time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC),
		League: domain.LeagueFirst, HomeTeam: "H", AwayTeam: "F",
		HomeScore: 3, AwayScore: 3, Venue: "PayPay Dome", Status: domain.GameFinal,
	})
	require.NoError(t, s.ResetStaging(ctx, s.Handle()))
	_, err := s.StageMonth(ctx, s.Handle(), next)
	require.NoError(t, err)

	res, err := s.CountNew(ctx, s.Handle(), TableGames)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Staged)
	assert.Equal(t, int64(2), res.Duplicates)
	assert.Equal(t, int64(1), res.Inserted)

	count, err := s.TableCount(ctx, TableGames)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "dry-run count must not change the permanent table")
}

func TestBattingTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stageAndUpsert(t, s, testMonth())

	totals, err := s.BattingTotals(ctx, domain.LeagueFirst, 2023)
	require.NoError(t, err)

	assert.Equal(t, int64(14), totals.PlateAppearances)
	assert.Equal(t, int64(13), totals.AtBats)
	assert.Equal(t, int64(6), totals.Hits)
	assert.Equal(t, int64(1), totals.Doubles)
	assert.Equal(t, int64(1), totals.Triples)
	assert.Equal(t, int64(1), totals.HomeRuns)
	assert.Equal(t, int64(1), totals.Walks)
	assert.Equal(t, int64(3), totals.Singles())

	// Wrong league or year aggregates to zero.
	farm, err := s.BattingTotals(ctx, domain.LeagueFarm, 2023)
	require.NoError(t, err)
	assert.Zero(t, farm.PlateAppearances)
}

func TestVenueRunTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stageAndUpsert(t, s, testMonth())

	venues, err := s.VenueRunTotals(ctx, domain.LeagueFirst, 2023)
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, VenueRuns{Games: 1, Runs: 6}, venues["Koshien"])
	assert.Equal(t, VenueRuns{Games: 1, Runs: 10}, venues["Mazda"])
}

func TestArchiveWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewArchiveWriter(dir)
	m := testMonth()

	require.NoError(t, w.WriteMonth(m))

	games, err := w.ReadGames(domain.LeagueFirst, 2023, "04")
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "20230401-T-G", games[0].GameID)
	assert.Equal(t, "Koshien", games[0].Venue)
	assert.Equal(t, int32(4), games[0].HomeScore)
}

func TestArchiveWriterSkipsEmptyMonth(t *testing.T) {
	dir := t.TempDir()
	w := NewArchiveWriter(dir)

	empty := &domain.RawMonth{League: domain.LeagueFirst, Year: 2023, Month: "05"}
	require.NoError(t, w.WriteMonth(empty))

	_, err := w.ReadGames(domain.LeagueFirst, 2023, "05")
	assert.Error(t, err, "no archive directory should exist for an empty month")
}
