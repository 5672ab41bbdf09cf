package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"npbstats/internal/config"
	"npbstats/internal/constants"
	"npbstats/internal/domain"
	"npbstats/internal/ingest"
	"npbstats/internal/notify"
	"npbstats/internal/store"
)

// Params select what a run processes.
type Params struct {
	StartYear  int
	EndYear    int
	Months     []string
	League     domain.League
	DryRun     bool
	ReportPath string // empty: DefaultReportPath under the data dir
}

func (p Params) validate() error {
	if p.StartYear > p.EndYear {
		return fmt.Errorf("start year %d after end year %d", p.StartYear, p.EndYear)
	}
	if !p.League.Valid() {
		return fmt.Errorf("unknown league %q", p.League)
	}
	if len(p.Months) == 0 {
		return fmt.Errorf("no months selected")
	}
	return nil
}

// Runner drives the batch. Execution is strictly sequential: one year at a
// time, one month at a time, one table at a time. All of a year's permanent
// writes share one transaction, so a mid-year failure rolls the year back.
type Runner struct {
	cfg      *config.Config
	store    *store.HistoryStore
	ingester *ingest.MonthIngester
	notifier notify.Notifier
	log      *slog.Logger
}

// NewRunner wires a Runner from its collaborators.
func NewRunner(cfg *config.Config, s *store.HistoryStore, mi *ingest.MonthIngester, n notify.Notifier) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    s,
		ingester: mi,
		notifier: n,
		log:      slog.Default().With("component", "backfill"),
	}
}

// Run processes every year in the range. On success the report is written
// and returned; on failure the partial report is returned alongside the
// error so callers can inspect how far the run got, but no report file is
// written.
func (r *Runner) Run(ctx context.Context, p Params) (*Report, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	report := &Report{
		Summary: Summary{
			DryRun:    p.DryRun,
			League:    string(p.League),
			StartYear: p.StartYear,
			EndYear:   p.EndYear,
			Months:    p.Months,
			StartedAt: time.Now().UTC(),
		},
	}

	for year := p.StartYear; year <= p.EndYear; year++ {
		res, err := r.runYear(ctx, p, year)
		if res != nil {
			report.Results = append(report.Results, *res)
		}
		if err != nil {
			return report, fmt.Errorf("year %d: %w", year, err)
		}
	}

	for _, res := range report.Results {
		for _, tr := range res.Tables {
			report.Summary.TotalStaged += tr.Staged
			report.Summary.TotalDuplicates += tr.Duplicates
			report.Summary.TotalInserted += tr.Inserted
		}
	}
	report.Summary.FinishedAt = time.Now().UTC()

	path := p.ReportPath
	if path == "" {
		path = DefaultReportPath(r.cfg.Storage.DataDir, report.Summary.StartedAt)
	}
	if err := report.Write(path); err != nil {
		return report, err
	}
	r.log.Info("run complete", "report", path,
		"inserted", report.Summary.TotalInserted, "duplicates", report.Summary.TotalDuplicates,
		"dryRun", p.DryRun)
	return report, nil
}

func newYearResult(year int, months []string) *YearResult {
	res := &YearResult{
		Year:   year,
		Months: months,
		Tables: make(map[string]*TableResult, len(store.Tables())),
	}
	for _, table := range store.Tables() {
		res.Tables[table] = &TableResult{}
	}
	return res
}

// runYear ingests and upserts every requested month of one year, then
// recomputes and validates the year's constants.
func (r *Runner) runYear(ctx context.Context, p Params, year int) (*YearResult, error) {
	if p.DryRun {
		return r.dryRunYear(ctx, p, year)
	}

	res := newYearResult(year, p.Months)

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return res, fmt.Errorf("beginning year transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, month := range p.Months {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := r.ingester.Run(ctx, tx, p.League, year, month); err != nil {
			return res, err
		}
		for _, table := range store.Tables() {
			ur, err := r.store.UpsertNew(ctx, tx, table)
			if err != nil {
				return res, err
			}
			res.Tables[table].add(ur.Staged, ur.Duplicates, ur.Inserted)
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing year: %w", err)
	}
	committed = true

	if dups := res.duplicateTotal(); dups > 0 {
		r.notifier.Notify(ctx, notify.LevelWarn, "Backfill found duplicate rows",
			fmt.Sprintf("%d already-present rows were skipped for %s %d.", dups, p.League, year),
			map[string]string{"league": string(p.League), "year": strconv.Itoa(year)})
	}

	cur, err := constants.Compute(ctx, r.store, p.League, year)
	if err != nil {
		return res, fmt.Errorf("recomputing constants: %w", err)
	}
	if err := constants.WriteSnapshot(r.cfg.Storage.DataDir, cur); err != nil {
		return res, err
	}
	res.Constants = cur

	if err := r.checkDelta(ctx, res, cur, p); err != nil {
		return res, err
	}

	res.Completed = true
	r.log.Info("year complete", "year", year, "league", p.League,
		"inserted", res.insertedTotal(), "duplicates", res.duplicateTotal())
	return res, nil
}

// dryRunYear stages and counts without touching the permanent tables, and
// downgrades every gate to a warning.
func (r *Runner) dryRunYear(ctx context.Context, p Params, year int) (*YearResult, error) {
	res := newYearResult(year, p.Months)
	q := r.store.Handle()

	for _, month := range p.Months {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := r.ingester.Run(ctx, q, p.League, year, month); err != nil {
			return res, err
		}
		for _, table := range store.Tables() {
			ur, err := r.store.CountNew(ctx, q, table)
			if err != nil {
				return res, err
			}
			res.Tables[table].add(ur.Staged, ur.Duplicates, ur.Inserted)
		}
	}

	// Constants come from the permanent tables, which a dry run leaves
	// untouched; an empty history simply has nothing to validate yet.
	cur, err := constants.Compute(ctx, r.store, p.League, year)
	if err != nil {
		r.log.Info("skipping constants in dry run", "year", year, "reason", err)
	} else {
		res.Constants = cur
		if err := r.checkDelta(ctx, res, cur, p); err != nil {
			return res, err
		}
	}

	res.Completed = true
	return res, nil
}

// checkDelta validates the year's coefficients against the previous year's
// snapshot. A missing previous snapshot skips validation; a breach is fatal
// in normal mode and a warning in dry-run.
func (r *Runner) checkDelta(ctx context.Context, res *YearResult, cur *domain.LeagueConstants, p Params) error {
	prev, err := constants.ReadSnapshot(r.cfg.Storage.DataDir, p.League, cur.Year-1)
	if errors.Is(err, os.ErrNotExist) {
		r.log.Info("no previous constants snapshot, skipping delta validation",
			"year", cur.Year, "league", p.League)
		return nil
	}
	if err != nil {
		return err
	}

	threshold := r.cfg.DeltaThreshold(p.League)
	delta, verr := constants.ValidateDelta(prev, cur, threshold)
	res.Delta = delta
	res.DeltaChecked = true
	res.DeltaOK = verr == nil

	if verr == nil {
		return nil
	}
	if !errors.Is(verr, constants.ErrDeltaExceeded) {
		return verr
	}

	fields := map[string]string{
		"league":    string(p.League),
		"year":      strconv.Itoa(cur.Year),
		"delta":     fmt.Sprintf("%.2f%%", delta*100),
		"threshold": fmt.Sprintf("%.2f%%", threshold*100),
	}
	if p.DryRun {
		r.notifier.Notify(ctx, notify.LevelWarn, "Coefficient delta exceeded (dry run)",
			verr.Error(), fields)
		r.log.Warn("coefficient delta exceeded", "year", cur.Year, "delta", delta)
		return nil
	}

	r.notifier.Notify(ctx, notify.LevelError, "Coefficient delta exceeded, halting backfill",
		verr.Error(), fields)
	return verr
}

func (res *YearResult) duplicateTotal() int64 {
	var n int64
	for _, tr := range res.Tables {
		n += tr.Duplicates
	}
	return n
}

func (res *YearResult) insertedTotal() int64 {
	var n int64
	for _, tr := range res.Tables {
		n += tr.Inserted
	}
	return n
}
