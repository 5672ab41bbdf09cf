// One-shot tool: backfill historical NPB seasons into the history database.
//
// Processes the requested year range month by month, staging each fetched
// month and inserting only rows not already present. After each year it
// recomputes the league constants, snapshots them, and validates the new
// coefficients against the previous year's snapshot. A JSON run report is
// written at the end.
//
// Usage:
//
//	go build -o bin/backfill-history ./cmd/backfill-history/
//	bin/backfill-history -start 2010 -end 2023 [-months all] [-league first]
//	    [-dry-run] [-report path] [-game-id id] [-profile path]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"npbstats/internal/backfill"
	"npbstats/internal/config"
	"npbstats/internal/domain"
	"npbstats/internal/ingest"
	"npbstats/internal/notify"
	"npbstats/internal/source"
	"npbstats/internal/store"
	"npbstats/internal/util"
)

func main() {
	start := flag.Int("start", 0, "first season year to backfill")
	end := flag.Int("end", 0, "last season year to backfill (inclusive)")
	months := flag.String("months", "all", `months to process: "all", a range like "04-10", or a list like "04,06"`)
	league := flag.String("league", "first", `league: "first" or "farm"`)
	dryRun := flag.Bool("dry-run", false, "stage and count without writing to the permanent tables")
	reportPath := flag.String("report", "", "run report path (default: timestamped file under the data dir)")
	gameID := flag.String("game-id", "", "restrict ingestion to a single game id")
	profile := flag.String("profile", "", "write a CPU profile to this path")
	flag.Parse()

	cfgPath := "config/npbstats.yaml"
	if p := os.Getenv("NPB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/backfill-history-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, io.MultiWriter(os.Stdout, logFile))
	util.SetDefault(logger)

	if *profile != "" {
		f, err := os.Create(*profile)
		if err != nil {
			log.Fatalf("failed to create profile file: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("failed to start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	monthList, err := backfill.ParseMonths(*months)
	if err != nil {
		log.Fatalf("invalid -months: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := notify.New(cfg.Notify.SlackWebhookURL, logger)

	params := backfill.Params{
		StartYear:  *start,
		EndYear:    *end,
		Months:     monthList,
		League:     domain.League(*league),
		DryRun:     *dryRun,
		ReportPath: *reportPath,
	}

	if err := run(ctx, cfg, notifier, params, *gameID); err != nil {
		notifier.Notify(ctx, notify.LevelError, "Backfill failed", err.Error(),
			map[string]string{"league": *league})
		logger.Error("backfill failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, notifier notify.Notifier, params backfill.Params, gameID string) error {
	hist, err := store.Open(cfg.Storage.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}
	defer hist.Close()

	opts := ingest.Options{GameID: gameID}

	// Team codes come from the current-season database when it exists;
	// without it, team names pass through as scraped.
	if cur, err := store.OpenCurrent(cfg.Storage.CurrentDB); err == nil {
		codes, terr := cur.TeamCodes(ctx)
		cur.Close()
		if terr != nil {
			return fmt.Errorf("reading team codes: %w", terr)
		}
		opts.TeamCodes = codes
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("opening current db: %w", err)
	}

	if cfg.Storage.ArchiveRaw && !params.DryRun {
		opts.Archive = &store.ArchiveWriter{DataDir: cfg.Storage.DataDir}
	}

	ingester := ingest.New(source.NewClient(cfg.Source), hist, opts)
	runner := backfill.NewRunner(cfg, hist, ingester, notifier)

	report, err := runner.Run(ctx, params)
	if err != nil {
		return err
	}

	notifier.Notify(ctx, notify.LevelInfo, "Backfill complete",
		fmt.Sprintf("%d-%d %s: %d rows inserted, %d duplicates skipped.",
			params.StartYear, params.EndYear, params.League,
			report.Summary.TotalInserted, report.Summary.TotalDuplicates),
		map[string]string{
			"league": string(params.League),
			"dryRun": fmt.Sprintf("%t", params.DryRun),
		})
	return nil
}
