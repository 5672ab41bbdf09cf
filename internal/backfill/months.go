// Package backfill orchestrates the historical load: for each year, ingest
// the requested months, anti-join upsert into the permanent tables,
// recompute league constants, and validate coefficient drift.
package backfill

import (
	"fmt"
	"strconv"
	"strings"

	"npbstats/internal/util"
)

// ParseMonths expands a month spec into zero-padded month labels.
// Accepted forms: "all" (the full season, April through November), a range
// "04-10", or a comma list "04,06". Single months are a one-element list.
func ParseMonths(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty month spec")
	}
	if strings.EqualFold(spec, "all") {
		return util.SeasonMonths(), nil
	}

	if strings.Contains(spec, "-") {
		parts := strings.SplitN(spec, "-", 2)
		start, err := parseMonth(parts[0])
		if err != nil {
			return nil, err
		}
		end, err := parseMonth(parts[1])
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("month range %q runs backwards", spec)
		}
		months := make([]string, 0, end-start+1)
		for m := start; m <= end; m++ {
			months = append(months, fmt.Sprintf("%02d", m))
		}
		return months, nil
	}

	var months []string
	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		m, err := parseMonth(part)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		months = append(months, fmt.Sprintf("%02d", m))
	}
	return months, nil
}

func parseMonth(s string) (int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("invalid month %q", strings.TrimSpace(s))
	}
	return m, nil
}
