package util

import "fmt"

// NPB regular seasons open in April; including post-season play the last
// games of a year land in November. Backfill month ranges are bounded by
// this window when the caller asks for "all".
const (
	SeasonFirstMonth = 4
	SeasonLastMonth  = 11
)

// SeasonMonths returns the zero-padded month labels of a full NPB season,
// "04" through "11".
func SeasonMonths() []string {
	months := make([]string, 0, SeasonLastMonth-SeasonFirstMonth+1)
	for m := SeasonFirstMonth; m <= SeasonLastMonth; m++ {
		months = append(months, fmt.Sprintf("%02d", m))
	}
	return months
}
