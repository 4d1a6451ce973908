package sources

import (
	"context"
	"osu-leaderboard/internal/leaderboard"
)

// JSONGetter is the authenticated API capability used by the api sources.
type JSONGetter interface {
	GetJSON(ctx context.Context, token, path string) (map[string]any, error)
}

// PageFetcher is the public html capability used by the scrape source.
type PageFetcher interface {
	Page(ctx context.Context, url string) ([]byte, error)
}

// listPaths are the places a ranking list is found in, in order.
var listPaths = []string{"ranking", "ranking.items", "items", "data"}

// extractRecords returns the first non-empty list of objects of a response.
func extractRecords(doc map[string]any) []leaderboard.Record {
	root := leaderboard.Record(doc)
	for _, path := range listPaths {
		value, ok := root.Lookup(path)
		if !ok {
			continue
		}
		list, ok := value.([]any)
		if !ok {
			continue
		}

		records := make([]leaderboard.Record, 0, len(list))
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			records = append(records, leaderboard.Record(obj))
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

func truncate(records []leaderboard.Record, limit int) []leaderboard.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
