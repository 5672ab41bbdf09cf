package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"npbstats/internal/domain"
)

// TableResult is one table's upsert outcome for a year, summed over the
// processed months. inserted is always staged - duplicates.
type TableResult struct {
	Staged     int64 `json:"staged"`
	Duplicates int64 `json:"duplicates"`
	Inserted   int64 `json:"inserted"`
}

func (t *TableResult) add(staged, duplicates, inserted int64) {
	t.Staged += staged
	t.Duplicates += duplicates
	t.Inserted += inserted
}

// YearResult records what one year of the run did.
type YearResult struct {
	Year         int                      `json:"year"`
	Months       []string                 `json:"months"`
	Tables       map[string]*TableResult  `json:"tables"`
	Constants    *domain.LeagueConstants  `json:"constants,omitempty"`
	Delta        float64                  `json:"delta"`
	DeltaChecked bool                     `json:"deltaChecked"`
	DeltaOK      bool                     `json:"deltaOK"`
	Completed    bool                     `json:"completed"`
}

// Summary is the run-level header of a report.
type Summary struct {
	DryRun          bool      `json:"dryRun"`
	League          string    `json:"league"`
	StartYear       int       `json:"startYear"`
	EndYear         int       `json:"endYear"`
	Months          []string  `json:"months"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	TotalStaged     int64     `json:"totalStaged"`
	TotalDuplicates int64     `json:"totalDuplicates"`
	TotalInserted   int64     `json:"totalInserted"`
}

// Report is the JSON run report written after every successful run.
type Report struct {
	Summary Summary      `json:"summary"`
	Results []YearResult `json:"results"`
}

// Write persists the report as pretty-printed JSON.
func (r *Report) Write(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// DefaultReportPath names a report by its start timestamp.
func DefaultReportPath(dataDir string, now time.Time) string {
	return filepath.Join(dataDir, fmt.Sprintf("backfill_report_%s.json", now.Format("20060102-150405")))
}
