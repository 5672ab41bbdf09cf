package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// CurrentStore is a read-only handle on the current-season database. The
// backfill never writes to it; it only borrows the team master for
// normalizing team names in historical source pages.
type CurrentStore struct {
	db *sql.DB
}

// OpenCurrent opens the current-season database in read-only mode. A missing
// file is reported as os.ErrNotExist so callers can degrade gracefully.
func OpenCurrent(dbPath string) (*CurrentStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("current db %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("opening current db %s: %w", dbPath, err)
	}
	return &CurrentStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *CurrentStore) Close() error {
	return s.db.Close()
}

// TeamCodes returns the team master mapping of display name to canonical
// team code.
func (s *CurrentStore) TeamCodes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, code FROM teams")
	if err != nil {
		return nil, fmt.Errorf("reading team master: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]string)
	for rows.Next() {
		var name, code string
		if err := rows.Scan(&name, &code); err != nil {
			return nil, fmt.Errorf("scanning team master: %w", err)
		}
		codes[name] = code
	}
	return codes, rows.Err()
}
