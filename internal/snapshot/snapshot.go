package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"osu-leaderboard/internal/leaderboard"
	"path/filepath"
	"strings"

	"github.com/mazen160/go-random"
)

// Check verifies the invariants a snapshot must hold before it is written.
func Check(snap leaderboard.Snapshot) error {
	if len(snap.Country) != 2 {
		return fmt.Errorf("invalid country %q", snap.Country)
	}
	switch snap.Source {
	case leaderboard.SourceAPI, leaderboard.SourceScrape:
	default:
		return fmt.Errorf("invalid source %q", snap.Source)
	}
	if len(snap.Items) == 0 {
		return leaderboard.ErrNoData
	}

	seen := make(map[string]struct{}, len(snap.Items))
	var lastRank *int64
	for i, item := range snap.Items {
		key := strings.ToLower(strings.TrimSpace(item.Username))
		if _, ok := seen[key]; ok {
			return fmt.Errorf("item %d: duplicate username %q", i, item.Username)
		}
		seen[key] = struct{}{}

		if snap.Source == leaderboard.SourceScrape && (key == "" || item.Username == leaderboard.UnknownUsername) {
			return fmt.Errorf("item %d: scraped entry without username", i)
		}
		if item.Rank != nil {
			if lastRank != nil && *item.Rank < *lastRank {
				return fmt.Errorf("item %d: rank %d after rank %d", i, *item.Rank, *lastRank)
			}
			lastRank = item.Rank
		}
	}
	return nil
}

// Write replaces the snapshot at path. The document is written to a
// temporary file next to it first, so readers never see a partial file.
func Write(path string, snap leaderboard.Snapshot) error {
	err := Check(snap)
	if err != nil {
		return fmt.Errorf("refusing to write snapshot: %w", err)
	}

	buf, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	suffix, err := random.String(8)
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, suffix)

	err = os.WriteFile(tmp, buf, 0644)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	err = os.Rename(tmp, path)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func Read(path string) (leaderboard.Snapshot, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return leaderboard.Snapshot{}, err
	}
	var snap leaderboard.Snapshot
	err = json.Unmarshal(buf, &snap)
	if err != nil {
		return leaderboard.Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}
