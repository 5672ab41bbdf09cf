// One-shot tool: recompute a year's league constants from the history
// database and write the snapshot file.
//
// With -check-delta the new coefficients are validated against the previous
// year's snapshot before anything is written; a breach leaves the old
// snapshot in place.
//
// Usage:
//
//	go build -o bin/compute-constants ./cmd/compute-constants/
//	bin/compute-constants -year 2019 [-league first] [-check-delta]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"npbstats/internal/config"
	"npbstats/internal/constants"
	"npbstats/internal/domain"
	"npbstats/internal/store"
	"npbstats/internal/util"
)

func main() {
	year := flag.Int("year", 0, "season year to compute")
	league := flag.String("league", "first", `league: "first" or "farm"`)
	checkDelta := flag.Bool("check-delta", false, "validate against the previous year's snapshot before writing")
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

	if *year == 0 {
		log.Fatal("-year is required")
	}
	lg := domain.League(*league)
	if !lg.Valid() {
		log.Fatalf("unknown league %q", *league)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, lg, *year, *checkDelta); err != nil {
		logger.Error("constants computation failed", "year", *year, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, league domain.League, year int, checkDelta bool) error {
	hist, err := store.Open(cfg.Storage.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}
	defer hist.Close()

	cur, err := constants.Compute(ctx, hist, league, year)
	if err != nil {
		return err
	}

	if checkDelta {
		prev, err := constants.ReadSnapshot(cfg.Storage.DataDir, league, year-1)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprintf(os.Stderr, "no snapshot for %d, skipping delta validation\n", year-1)
		case err != nil:
			return err
		default:
			delta, verr := constants.ValidateDelta(prev, cur, cfg.DeltaThreshold(league))
			if verr != nil {
				return fmt.Errorf("delta %.2f%% vs %d: %w", delta*100, year-1, verr)
			}
			fmt.Fprintf(os.Stderr, "delta vs %d: %.2f%%\n", year-1, delta*100)
		}
	}

	if err := constants.WriteSnapshot(cfg.Storage.DataDir, cur); err != nil {
		return err
	}

	out, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
