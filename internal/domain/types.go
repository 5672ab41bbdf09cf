// Package domain defines the core data types shared across the backfill
// pipeline: games, box-score lines, and year-scoped league constants.
package domain

import "time"

// League identifies an NPB competition tier.
type League string

const (
	// LeagueFirst is the top league (Central + Pacific).
	LeagueFirst League = "first"
	// LeagueFarm is the farm league (Eastern + Western, NPB2).
	LeagueFarm League = "farm"
)

// Valid reports whether l is a known league.
func (l League) Valid() bool {
	return l == LeagueFirst || l == LeagueFarm
}

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameFinal     GameStatus = "final"
	GameCancelled GameStatus = "cancelled"
)

// Game is one contest. GameID is globally unique across the historical
// store; a finalized game is never mutated, only skipped on re-ingestion.
type Game struct {
	GameID    string
	Date      time.Time
	League    League
	HomeTeam  string
	AwayTeam  string
	HomeScore int
	AwayScore int
	Venue     string
	Status    GameStatus
}

// BattingLine is one player's batting line for one game, keyed by
// (GameID, PlayerID).
type BattingLine struct {
	GameID           string
	PlayerID         string
	Team             string
	PlateAppearances int
	AtBats           int
	Runs             int
	Hits             int
	Doubles          int
	Triples          int
	HomeRuns         int
	RunsBattedIn     int
	Walks            int
	IntentionalWalks int
	HitByPitch       int
	SacBunts         int
	SacFlies         int
	Strikeouts       int
	StolenBases      int
}

// Singles returns the number of singles derived from the hit components.
func (b BattingLine) Singles() int {
	return b.Hits - b.Doubles - b.Triples - b.HomeRuns
}

// PitchingLine is one player's pitching line for one game, keyed by
// (GameID, PlayerID). Outs is innings pitched expressed in outs recorded.
type PitchingLine struct {
	GameID       string
	PlayerID     string
	Team         string
	Outs         int
	BattersFaced int
	Hits         int
	HomeRuns     int
	Walks        int
	HitByPitch   int
	Strikeouts   int
	Runs         int
	EarnedRuns   int
}

// RawMonth is the result of fetching one league-month from the source.
// A RawMonth with zero games and a nil fetch error is a legitimate off-day
// month; fetch failures never produce a RawMonth.
type RawMonth struct {
	League   League
	Year     int
	Month    string // zero-padded "01".."12"
	Games    []Game
	Batting  []BattingLine
	Pitching []PitchingLine
}

// WOBAWeights holds the per-event wOBA coefficients for one league-year.
type WOBAWeights struct {
	Walk       float64 `json:"bb"`
	HitByPitch float64 `json:"hbp"`
	Single     float64 `json:"single"`
	Double     float64 `json:"double"`
	Triple     float64 `json:"triple"`
	HomeRun    float64 `json:"hr"`
}

// LeagueConstants is the year-scoped coefficient set derived from all games
// and box scores of that league-year. It is recomputed wholesale each time
// the batch finishes a year.
type LeagueConstants struct {
	Year             int                `json:"year"`
	League           League             `json:"league"`
	WOBA             WOBAWeights        `json:"woba"`
	WOBAScale        float64            `json:"wobaScale"`
	LeagueOBP        float64            `json:"leagueOBP"`
	PlateAppearances int64              `json:"plateAppearances"`
	Games            int64              `json:"games"`
	ParkFactors      map[string]float64 `json:"parkFactors,omitempty"`
	ComputedAt       time.Time          `json:"computedAt"`
}
