package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"npbstats/internal/domain"
)

const dateLayout = "2006-01-02"

// HistoryStore owns the read-write connection to the history database. Open
// it at batch start and Close it on every exit path; all other components
// borrow it.
type HistoryStore struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the history database at dbPath, applies pragmas,
// and bootstraps the schema.
func Open(dbPath string) (*HistoryStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history db %s: %w", dbPath, err)
	}

	s := &HistoryStore{db: db, log: slog.Default().With("component", "store")}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Handle exposes the connection pool as a Querier for callers that run
// outside a transaction (dry-run counts, aggregate reads).
func (s *HistoryStore) Handle() Querier {
	return s.db
}

// BeginTx starts the per-year write transaction.
func (s *HistoryStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

const gameColumns = `game_id TEXT PRIMARY KEY,
  date TEXT NOT NULL,
  league TEXT NOT NULL,
  home_team TEXT NOT NULL,
  away_team TEXT NOT NULL,
  home_score INTEGER NOT NULL,
  away_score INTEGER NOT NULL,
  venue TEXT NOT NULL,
  status TEXT NOT NULL`

const battingColumns = `game_id TEXT NOT NULL,
  player_id TEXT NOT NULL,
  team TEXT NOT NULL,
  plate_appearances INTEGER NOT NULL,
  at_bats INTEGER NOT NULL,
  runs INTEGER NOT NULL,
  hits INTEGER NOT NULL,
  doubles INTEGER NOT NULL,
  triples INTEGER NOT NULL,
  home_runs INTEGER NOT NULL,
  runs_batted_in INTEGER NOT NULL,
  walks INTEGER NOT NULL,
  intentional_walks INTEGER NOT NULL,
  hit_by_pitch INTEGER NOT NULL,
  sac_bunts INTEGER NOT NULL,
  sac_flies INTEGER NOT NULL,
  strikeouts INTEGER NOT NULL,
  stolen_bases INTEGER NOT NULL,
  PRIMARY KEY (game_id, player_id)`

const pitchingColumns = `game_id TEXT NOT NULL,
  player_id TEXT NOT NULL,
  team TEXT NOT NULL,
  outs INTEGER NOT NULL,
  batters_faced INTEGER NOT NULL,
  hits INTEGER NOT NULL,
  home_runs INTEGER NOT NULL,
  walks INTEGER NOT NULL,
  hit_by_pitch INTEGER NOT NULL,
  strikeouts INTEGER NOT NULL,
  runs INTEGER NOT NULL,
  earned_runs INTEGER NOT NULL,
  PRIMARY KEY (game_id, player_id)`

func (s *HistoryStore) initSchema(ctx context.Context) error {
	defs := map[string]string{
		TableGames:    gameColumns,
		TableBatting:  battingColumns,
		TablePitching: pitchingColumns,
	}
	for _, table := range Tables() {
		cols := defs[table]
		// Permanent table and its staging twin share one definition so the
		// anti-join INSERT ... SELECT stays column-compatible.
		for _, name := range []string{table, StagingName(table)} {
			ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, cols)
			if _, err := s.db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("creating %s: %w", name, err)
			}
		}
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_games_league_date ON games (league, date)"); err != nil {
		return fmt.Errorf("creating games index: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Staging
// ---------------------------------------------------------------------------

// ResetStaging empties all staging tables.
func (s *HistoryStore) ResetStaging(ctx context.Context, q Querier) error {
	for _, table := range Tables() {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+StagingName(table)); err != nil {
			return fmt.Errorf("resetting %s: %w", StagingName(table), err)
		}
	}
	return nil
}

// StageMonth loads one fetched month into the staging tables. Rows repeated
// within the month (double-headers reported twice, source hiccups) collapse
// on the staging primary keys.
func (s *HistoryStore) StageMonth(ctx context.Context, q Querier, m *domain.RawMonth) (StageCounts, error) {
	var counts StageCounts

	for _, g := range m.Games {
		_, err := q.ExecContext(ctx, `
			INSERT OR REPLACE INTO staging_games
			  (game_id, date, league, home_team, away_team, home_score, away_score, venue, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.GameID, g.Date.Format(dateLayout), string(g.League),
			g.HomeTeam, g.AwayTeam, g.HomeScore, g.AwayScore, g.Venue, string(g.Status))
		if err != nil {
			return counts, fmt.Errorf("staging game %s: %w", g.GameID, err)
		}
	}

	for _, b := range m.Batting {
		_, err := q.ExecContext(ctx, `
			INSERT OR REPLACE INTO staging_batting_lines
			  (game_id, player_id, team, plate_appearances, at_bats, runs, hits,
			   doubles, triples, home_runs, runs_batted_in, walks, intentional_walks,
			   hit_by_pitch, sac_bunts, sac_flies, strikeouts, stolen_bases)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.GameID, b.PlayerID, b.Team, b.PlateAppearances, b.AtBats, b.Runs, b.Hits,
			b.Doubles, b.Triples, b.HomeRuns, b.RunsBattedIn, b.Walks, b.IntentionalWalks,
			b.HitByPitch, b.SacBunts, b.SacFlies, b.Strikeouts, b.StolenBases)
		if err != nil {
			return counts, fmt.Errorf("staging batting line %s/%s: %w", b.GameID, b.PlayerID, err)
		}
	}

	for _, p := range m.Pitching {
		_, err := q.ExecContext(ctx, `
			INSERT OR REPLACE INTO staging_pitching_lines
			  (game_id, player_id, team, outs, batters_faced, hits, home_runs,
			   walks, hit_by_pitch, strikeouts, runs, earned_runs)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.GameID, p.PlayerID, p.Team, p.Outs, p.BattersFaced, p.Hits, p.HomeRuns,
			p.Walks, p.HitByPitch, p.Strikeouts, p.Runs, p.EarnedRuns)
		if err != nil {
			return counts, fmt.Errorf("staging pitching line %s/%s: %w", p.GameID, p.PlayerID, err)
		}
	}

	for table, dst := range map[string]*int64{
		TableGames:    &counts.Games,
		TableBatting:  &counts.Batting,
		TablePitching: &counts.Pitching,
	} {
		n, err := s.count(ctx, q, StagingName(table))
		if err != nil {
			return counts, err
		}
		*dst = n
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Anti-join upsert
// ---------------------------------------------------------------------------

// tablePKs lists the primary key columns per table, used to build the
// anti-join match.
var tablePKs = map[string][]string{
	TableGames:    {"game_id"},
	TableBatting:  {"game_id", "player_id"},
	TablePitching: {"game_id", "player_id"},
}

func antiJoinCondition(table string) string {
	cond := ""
	for i, col := range tablePKs[table] {
		if i > 0 {
			cond += " AND "
		}
		cond += fmt.Sprintf("t.%s = s.%s", col, col)
	}
	return cond
}

// UpsertNew copies staging rows into the permanent table, skipping any row
// whose primary key already exists. Existing rows are never overwritten:
// the anti-join is the sole idempotence guarantee of the pipeline.
func (s *HistoryStore) UpsertNew(ctx context.Context, q Querier, table string) (UpsertResult, error) {
	res := UpsertResult{Table: table}
	if _, ok := tablePKs[table]; !ok {
		return res, fmt.Errorf("unknown table %q", table)
	}

	staged, err := s.count(ctx, q, StagingName(table))
	if err != nil {
		return res, err
	}
	res.Staged = staged

	query := fmt.Sprintf(`
		INSERT INTO %s SELECT * FROM %s s
		WHERE NOT EXISTS (SELECT 1 FROM %s t WHERE %s)`,
		table, StagingName(table), table, antiJoinCondition(table))
	r, err := q.ExecContext(ctx, query)
	if err != nil {
		return res, fmt.Errorf("upserting %s: %w", table, err)
	}
	inserted, err := r.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("upserting %s: rows affected: %w", table, err)
	}

	res.Inserted = inserted
	res.Duplicates = staged - inserted

	s.log.Debug("upsert complete", "table", table,
		"staged", res.Staged, "inserted", res.Inserted, "duplicates", res.Duplicates)
	return res, nil
}

// CountNew computes the same numbers as UpsertNew without mutating state.
// This is the dry-run path.
func (s *HistoryStore) CountNew(ctx context.Context, q Querier, table string) (UpsertResult, error) {
	res := UpsertResult{Table: table}
	if _, ok := tablePKs[table]; !ok {
		return res, fmt.Errorf("unknown table %q", table)
	}

	staged, err := s.count(ctx, q, StagingName(table))
	if err != nil {
		return res, err
	}
	res.Staged = staged

	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s s
		WHERE EXISTS (SELECT 1 FROM %s t WHERE %s)`,
		StagingName(table), table, antiJoinCondition(table))
	if err := q.QueryRowContext(ctx, query).Scan(&res.Duplicates); err != nil {
		return res, fmt.Errorf("counting duplicates in %s: %w", table, err)
	}

	res.Inserted = res.Staged - res.Duplicates
	return res, nil
}

// TableCount returns the permanent row count of a table.
func (s *HistoryStore) TableCount(ctx context.Context, table string) (int64, error) {
	return s.count(ctx, s.db, table)
}

func (s *HistoryStore) count(ctx context.Context, q Querier, name string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+name).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", name, err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Aggregates for constants recomputation
// ---------------------------------------------------------------------------

// EventTotals are the league-year batting event sums the wOBA recomputation
// runs on.
type EventTotals struct {
	PlateAppearances int64
	AtBats           int64
	Hits             int64
	Doubles          int64
	Triples          int64
	HomeRuns         int64
	Walks            int64
	IntentionalWalks int64
	HitByPitch       int64
	SacFlies         int64
	Strikeouts       int64
}

// Singles returns the derived singles count.
func (t EventTotals) Singles() int64 {
	return t.Hits - t.Doubles - t.Triples - t.HomeRuns
}

// BattingTotals sums batting events over all finalized games of a
// league-year from the permanent tables.
func (s *HistoryStore) BattingTotals(ctx context.Context, league domain.League, year int) (EventTotals, error) {
	var t EventTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
		  COALESCE(SUM(b.plate_appearances), 0),
		  COALESCE(SUM(b.at_bats), 0),
		  COALESCE(SUM(b.hits), 0),
		  COALESCE(SUM(b.doubles), 0),
		  COALESCE(SUM(b.triples), 0),
		  COALESCE(SUM(b.home_runs), 0),
		  COALESCE(SUM(b.walks), 0),
		  COALESCE(SUM(b.intentional_walks), 0),
		  COALESCE(SUM(b.hit_by_pitch), 0),
		  COALESCE(SUM(b.sac_flies), 0),
		  COALESCE(SUM(b.strikeouts), 0)
		FROM batting_lines b
		JOIN games g ON g.game_id = b.game_id
		WHERE g.league = ? AND substr(g.date, 1, 4) = ? AND g.status = ?`,
		string(league), strconv.Itoa(year), string(domain.GameFinal),
	).Scan(&t.PlateAppearances, &t.AtBats, &t.Hits, &t.Doubles, &t.Triples,
		&t.HomeRuns, &t.Walks, &t.IntentionalWalks, &t.HitByPitch,
		&t.SacFlies, &t.Strikeouts)
	if err != nil {
		return t, fmt.Errorf("aggregating batting totals %s/%d: %w", league, year, err)
	}
	return t, nil
}

// VenueRuns holds the inputs of one venue's park factor.
type VenueRuns struct {
	Games int64
	Runs  int64
}

// VenueRunTotals groups finalized games of a league-year by venue.
func (s *HistoryStore) VenueRunTotals(ctx context.Context, league domain.League, year int) (map[string]VenueRuns, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue, COUNT(*), COALESCE(SUM(home_score + away_score), 0)
		FROM games
		WHERE league = ? AND substr(date, 1, 4) = ? AND status = ?
		GROUP BY venue`,
		string(league), strconv.Itoa(year), string(domain.GameFinal))
	if err != nil {
		return nil, fmt.Errorf("aggregating venue runs %s/%d: %w", league, year, err)
	}
	defer rows.Close()

	totals := make(map[string]VenueRuns)
	for rows.Next() {
		var venue string
		var vr VenueRuns
		if err := rows.Scan(&venue, &vr.Games, &vr.Runs); err != nil {
			return nil, fmt.Errorf("scanning venue runs: %w", err)
		}
		totals[venue] = vr
	}
	return totals, rows.Err()
}

// GameCount returns the number of finalized games of a league-year.
func (s *HistoryStore) GameCount(ctx context.Context, league domain.League, year int) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM games
		WHERE league = ? AND substr(date, 1, 4) = ? AND status = ?`,
		string(league), strconv.Itoa(year), string(domain.GameFinal)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting games %s/%d: %w", league, year, err)
	}
	return n, nil
}
