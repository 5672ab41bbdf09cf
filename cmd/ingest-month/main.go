// One-shot tool: ingest a single league-month into the history database.
//
// Fetches one month from the source, stages it, and inserts the rows not
// already present. Useful for patching a month after a source correction
// without rerunning a whole backfill.
//
// Usage:
//
//	go build -o bin/ingest-month ./cmd/ingest-month/
//	bin/ingest-month -year 2019 -month 07 [-league first] [-game-id id]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"npbstats/internal/backfill"
	"npbstats/internal/config"
	"npbstats/internal/domain"
	"npbstats/internal/ingest"
	"npbstats/internal/source"
	"npbstats/internal/store"
	"npbstats/internal/util"
)

func main() {
	year := flag.Int("year", 0, "season year to ingest")
	month := flag.String("month", "", `zero-padded month to ingest, e.g. "07"`)
	league := flag.String("league", "first", `league: "first" or "farm"`)
	gameID := flag.String("game-id", "", "restrict ingestion to a single game id")
	flag.Parse()

	cfgPath := "config/npbstats.yaml"
	if p := os.Getenv("NPB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	util.SetDefault(logger)

	if *year == 0 || *month == "" {
		log.Fatal("-year and -month are required")
	}
	months, err := backfill.ParseMonths(*month)
	if err != nil || len(months) != 1 {
		log.Fatalf("invalid -month %q", *month)
	}
	lg := domain.League(*league)
	if !lg.Valid() {
		log.Fatalf("unknown league %q", *league)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, lg, *year, months[0], *gameID); err != nil {
		logger.Error("ingest failed", "year", *year, "month", *month, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, league domain.League, year int, month, gameID string) error {
	hist, err := store.Open(cfg.Storage.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}
	defer hist.Close()

	opts := ingest.Options{GameID: gameID}
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
	if cfg.Storage.ArchiveRaw {
		opts.Archive = &store.ArchiveWriter{DataDir: cfg.Storage.DataDir}
	}

	ingester := ingest.New(source.NewClient(cfg.Source), hist, opts)

	tx, err := hist.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := ingester.Run(ctx, tx, league, year, month); err != nil {
		return err
	}
	for _, table := range store.Tables() {
		ur, err := hist.UpsertNew(ctx, tx, table)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s staged=%d duplicates=%d inserted=%d\n",
			table, ur.Staged, ur.Duplicates, ur.Inserted)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing month: %w", err)
	}
	committed = true
	return nil
}
