package source

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"npbstats/internal/domain"
)

// The source site marks every stat cell with a data-stat attribute, so
// parsing selects on those instead of column positions.

// ParseSchedule extracts the games of one month from a schedule page.
// Rows without a game_id cell (spacers, subtotals) are skipped.
func ParseSchedule(r io.Reader, league domain.League) ([]domain.Game, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule html: %w", err)
	}

	table := doc.Find("table#schedule")
	if table.Length() == 0 {
		return nil, fmt.Errorf("schedule page has no table#schedule")
	}

	var games []domain.Game
	var rowErr error
	table.Find("tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		gameID := cellText(row, "game_id")
		if gameID == "" {
			return true
		}

		date, err := time.Parse("2006-01-02", cellText(row, "date"))
		if err != nil {
			rowErr = fmt.Errorf("game %s: bad date %q: %w", gameID, cellText(row, "date"), err)
			return false
		}

		g := domain.Game{
			GameID:   gameID,
			Date:     date,
			League:   league,
			HomeTeam: cellText(row, "home_team"),
			AwayTeam: cellText(row, "away_team"),
			Venue:    cellText(row, "venue"),
			Status:   parseStatus(cellText(row, "status")),
		}
		if g.Status == domain.GameFinal {
			if g.HomeScore, err = cellInt(row, "home_score"); err != nil {
				rowErr = fmt.Errorf("game %s: %w", gameID, err)
				return false
			}
			if g.AwayScore, err = cellInt(row, "away_score"); err != nil {
				rowErr = fmt.Errorf("game %s: %w", gameID, err)
				return false
			}
		}
		games = append(games, g)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return games, nil
}

// ParseBoxScore extracts the batting and pitching lines from a game box
// page for the given game.
func ParseBoxScore(r io.Reader, gameID string) ([]domain.BattingLine, []domain.PitchingLine, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing box score html: %w", err)
	}

	battingTable := doc.Find("table#batting")
	pitchingTable := doc.Find("table#pitching")
	if battingTable.Length() == 0 || pitchingTable.Length() == 0 {
		return nil, nil, fmt.Errorf("box score page for %s is missing batting or pitching table", gameID)
	}

	var batting []domain.BattingLine
	var rowErr error
	battingTable.Find("tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		playerID := cellText(row, "player_id")
		if playerID == "" {
			return true
		}
		line := domain.BattingLine{GameID: gameID, PlayerID: playerID, Team: cellText(row, "team")}
		fields := []struct {
			stat string
			dst  *int
		}{
			{"pa", &line.PlateAppearances},
			{"ab", &line.AtBats},
			{"r", &line.Runs},
			{"h", &line.Hits},
			{"2b", &line.Doubles},
			{"3b", &line.Triples},
			{"hr", &line.HomeRuns},
			{"rbi", &line.RunsBattedIn},
			{"bb", &line.Walks},
			{"ibb", &line.IntentionalWalks},
			{"hbp", &line.HitByPitch},
			{"sh", &line.SacBunts},
			{"sf", &line.SacFlies},
			{"so", &line.Strikeouts},
			{"sb", &line.StolenBases},
		}
		for _, f := range fields {
			v, err := cellInt(row, f.stat)
			if err != nil {
				rowErr = fmt.Errorf("batting line %s/%s: %w", gameID, playerID, err)
				return false
			}
			*f.dst = v
		}
		batting = append(batting, line)
		return true
	})
	if rowErr != nil {
		return nil, nil, rowErr
	}

	var pitching []domain.PitchingLine
	pitchingTable.Find("tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		playerID := cellText(row, "player_id")
		if playerID == "" {
			return true
		}
		line := domain.PitchingLine{GameID: gameID, PlayerID: playerID, Team: cellText(row, "team")}
		fields := []struct {
			stat string
			dst  *int
		}{
			{"ip_outs", &line.Outs},
			{"bf", &line.BattersFaced},
			{"h", &line.Hits},
			{"hr", &line.HomeRuns},
			{"bb", &line.Walks},
			{"hbp", &line.HitByPitch},
			{"so", &line.Strikeouts},
			{"r", &line.Runs},
			{"er", &line.EarnedRuns},
		}
		for _, f := range fields {
			v, err := cellInt(row, f.stat)
			if err != nil {
				rowErr = fmt.Errorf("pitching line %s/%s: %w", gameID, playerID, err)
				return false
			}
			*f.dst = v
		}
		pitching = append(pitching, line)
		return true
	})
	if rowErr != nil {
		return nil, nil, rowErr
	}

	return batting, pitching, nil
}

func parseStatus(s string) domain.GameStatus {
	switch strings.ToLower(s) {
	case "final", "f":
		return domain.GameFinal
	case "cancelled", "canceled", "ppd", "no game":
		return domain.GameCancelled
	default:
		return domain.GameScheduled
	}
}

func cellText(row *goquery.Selection, stat string) string {
	sel := fmt.Sprintf(`td[data-stat=%q], th[data-stat=%q]`, stat, stat)
	return strings.TrimSpace(row.Find(sel).First().Text())
}

func cellInt(row *goquery.Selection, stat string) (int, error) {
	txt := cellText(row, stat)
	if txt == "" || txt == "-" {
		return 0, nil
	}
	n, err := strconv.Atoi(txt)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", stat, txt)
	}
	return n, nil
}
