package constants

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"npbstats/internal/domain"
)

// SnapshotPath returns the coefficient snapshot file of a league-year.
// The top league keeps the historical constants_<year>.json name; the farm
// league is suffixed to live alongside it.
func SnapshotPath(dataDir string, league domain.League, year int) string {
	if league == domain.LeagueFarm {
		return filepath.Join(dataDir, fmt.Sprintf("constants_farm_%d.json", year))
	}
	return filepath.Join(dataDir, fmt.Sprintf("constants_%d.json", year))
}

// WriteSnapshot persists the constants atomically (write to a temp file in
// the same directory, then rename) so a crash never leaves a torn snapshot.
func WriteSnapshot(dataDir string, c *domain.LeagueConstants) error {
	path := SnapshotPath(dataDir, c.League, c.Year)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding constants %s %d: %w", c.League, c.Year, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".constants-*.json")
	if err != nil {
		return fmt.Errorf("writing constants %s %d: %w", c.League, c.Year, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing constants %s %d: %w", c.League, c.Year, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing constants %s %d: %w", c.League, c.Year, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing constants %s %d: %w", c.League, c.Year, err)
	}
	return nil
}

// ReadSnapshot loads a year's constants. A missing snapshot is reported as
// os.ErrNotExist; callers treat it as "no previous year to validate
// against".
func ReadSnapshot(dataDir string, league domain.League, year int) (*domain.LeagueConstants, error) {
	path := SnapshotPath(dataDir, league, year)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading constants %s %d: %w", league, year, err)
	}

	var c domain.LeagueConstants
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding constants %s: %w", path, err)
	}
	return &c, nil
}
