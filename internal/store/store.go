// Package store persists games and box-score lines in the SQLite history
// database and archives raw staged months as Parquet files.
package store

import (
	"context"
	"database/sql"
)

// Permanent table names. Each has a staging twin prefixed "staging_".
const (
	TableGames    = "games"
	TableBatting  = "batting_lines"
	TablePitching = "pitching_lines"
)

// Tables returns the permanent table names in upsert order.
func Tables() []string {
	return []string{TableGames, TableBatting, TablePitching}
}

// StagingName returns the staging twin of a permanent table.
func StagingName(table string) string {
	return "staging_" + table
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Store methods that must participate in the per-year transaction take a
// Querier so the caller decides the transaction scope.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ Querier = (*sql.DB)(nil)
var _ Querier = (*sql.Tx)(nil)

// StageCounts reports how many rows a month ingest placed in each staging
// table.
type StageCounts struct {
	Games    int64
	Batting  int64
	Pitching int64
}

// UpsertResult reports the outcome of one anti-join upsert (or its dry-run
// count). Inserted is always Staged - Duplicates.
type UpsertResult struct {
	Table      string
	Staged     int64
	Duplicates int64
	Inserted   int64
}
