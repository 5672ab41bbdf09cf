package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"npbstats/internal/domain"
)

// ArchiveWriter snapshots raw staged months as Parquet files so a bad upsert
// or a source outage can be replayed without re-scraping. Layout:
//
//	<DataDir>/archive/<league>/<YYYY>-<MM>/games.parquet
//	<DataDir>/archive/<league>/<YYYY>-<MM>/batting.parquet
//	<DataDir>/archive/<league>/<YYYY>-<MM>/pitching.parquet
type ArchiveWriter struct {
	DataDir string
}

// NewArchiveWriter creates an ArchiveWriter rooted at the given data
// directory.
func NewArchiveWriter(dataDir string) *ArchiveWriter {
	return &ArchiveWriter{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// GameRecord is the Parquet schema for archived game rows.
type GameRecord struct {
	GameID    string `parquet:"game_id"`
	Date      string `parquet:"date"`
	League    string `parquet:"league"`
	HomeTeam  string `parquet:"home_team"`
	AwayTeam  string `parquet:"away_team"`
	HomeScore int32  `parquet:"home_score"`
	AwayScore int32  `parquet:"away_score"`
	Venue     string `parquet:"venue"`
	Status    string `parquet:"status"`
}

// BattingRecord is the Parquet schema for archived batting lines.
type BattingRecord struct {
	GameID           string `parquet:"game_id"`
	PlayerID         string `parquet:"player_id"`
	Team             string `parquet:"team"`
	PlateAppearances int32  `parquet:"plate_appearances"`
	AtBats           int32  `parquet:"at_bats"`
	Runs             int32  `parquet:"runs"`
	Hits             int32  `parquet:"hits"`
	Doubles          int32  `parquet:"doubles"`
	Triples          int32  `parquet:"triples"`
	HomeRuns         int32  `parquet:"home_runs"`
	RunsBattedIn     int32  `parquet:"runs_batted_in"`
	Walks            int32  `parquet:"walks"`
	IntentionalWalks int32  `parquet:"intentional_walks"`
	HitByPitch       int32  `parquet:"hit_by_pitch"`
	SacBunts         int32  `parquet:"sac_bunts"`
	SacFlies         int32  `parquet:"sac_flies"`
	Strikeouts       int32  `parquet:"strikeouts"`
	StolenBases      int32  `parquet:"stolen_bases"`
}

// PitchingRecord is the Parquet schema for archived pitching lines.
type PitchingRecord struct {
	GameID       string `parquet:"game_id"`
	PlayerID     string `parquet:"player_id"`
	Team         string `parquet:"team"`
	Outs         int32  `parquet:"outs"`
	BattersFaced int32  `parquet:"batters_faced"`
	Hits         int32  `parquet:"hits"`
	HomeRuns     int32  `parquet:"home_runs"`
	Walks        int32  `parquet:"walks"`
	HitByPitch   int32  `parquet:"hit_by_pitch"`
	Strikeouts   int32  `parquet:"strikeouts"`
	Runs         int32  `parquet:"runs"`
	EarnedRuns   int32  `parquet:"earned_runs"`
}

// WriteMonth archives one staged month. Re-archiving the same month
// overwrites the previous snapshot; the files mirror staging, not history.
func (w *ArchiveWriter) WriteMonth(m *domain.RawMonth) error {
	if len(m.Games) == 0 {
		return nil
	}

	dir := w.monthDir(m.League, m.Year, m.Month)

	games := make([]GameRecord, 0, len(m.Games))
	for _, g := range m.Games {
		games = append(games, GameRecord{
			GameID:    g.GameID,
			Date:      g.Date.Format(dateLayout),
			League:    string(g.League),
			HomeTeam:  g.HomeTeam,
			AwayTeam:  g.AwayTeam,
			HomeScore: int32(g.HomeScore),
			AwayScore: int32(g.AwayScore),
			Venue:     g.Venue,
			Status:    string(g.Status),
		})
	}
	if err := writeParquetFile(filepath.Join(dir, "games.parquet"), games); err != nil {
		return fmt.Errorf("archiving games %s %d-%s: %w", m.League, m.Year, m.Month, err)
	}

	if len(m.Batting) > 0 {
		batting := make([]BattingRecord, 0, len(m.Batting))
		for _, b := range m.Batting {
			batting = append(batting, BattingRecord{
				GameID:           b.GameID,
				PlayerID:         b.PlayerID,
				Team:             b.Team,
				PlateAppearances: int32(b.PlateAppearances),
				AtBats:           int32(b.AtBats),
				Runs:             int32(b.Runs),
				Hits:             int32(b.Hits),
				Doubles:          int32(b.Doubles),
				Triples:          int32(b.Triples),
				HomeRuns:         int32(b.HomeRuns),
				RunsBattedIn:     int32(b.RunsBattedIn),
				Walks:            int32(b.Walks),
				IntentionalWalks: int32(b.IntentionalWalks),
				HitByPitch:       int32(b.HitByPitch),
				SacBunts:         int32(b.SacBunts),
				SacFlies:         int32(b.SacFlies),
				Strikeouts:       int32(b.Strikeouts),
				StolenBases:      int32(b.StolenBases),
			})
		}
		if err := writeParquetFile(filepath.Join(dir, "batting.parquet"), batting); err != nil {
			return fmt.Errorf("archiving batting %s %d-%s: %w", m.League, m.Year, m.Month, err)
		}
	}

	if len(m.Pitching) > 0 {
		pitching := make([]PitchingRecord, 0, len(m.Pitching))
		for _, p := range m.Pitching {
			pitching = append(pitching, PitchingRecord{
				GameID:       p.GameID,
				PlayerID:     p.PlayerID,
				Team:         p.Team,
				Outs:         int32(p.Outs),
				BattersFaced: int32(p.BattersFaced),
				Hits:         int32(p.Hits),
				HomeRuns:     int32(p.HomeRuns),
				Walks:        int32(p.Walks),
				HitByPitch:   int32(p.HitByPitch),
				Strikeouts:   int32(p.Strikeouts),
				Runs:         int32(p.Runs),
				EarnedRuns:   int32(p.EarnedRuns),
			})
		}
		if err := writeParquetFile(filepath.Join(dir, "pitching.parquet"), pitching); err != nil {
			return fmt.Errorf("archiving pitching %s %d-%s: %w", m.League, m.Year, m.Month, err)
		}
	}

	return nil
}

// ReadGames loads an archived month's game records, mostly for replay
// tooling and tests.
func (w *ArchiveWriter) ReadGames(league domain.League, year int, month string) ([]GameRecord, error) {
	return readParquetFile[GameRecord](filepath.Join(w.monthDir(league, year, month), "games.parquet"))
}

func (w *ArchiveWriter) monthDir(league domain.League, year int, month string) string {
	return filepath.Join(w.DataDir, "archive", string(league), fmt.Sprintf("%d-%s", year, month))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}
