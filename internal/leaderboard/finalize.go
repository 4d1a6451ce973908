package leaderboard

import (
	"slices"
	"strings"
)

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Dedupe keeps the first entry of every case-insensitive username.
func Dedupe(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		key := usernameKey(e.Username)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SortByRank orders ranked entries ascending, ties keep input order. Entries
// without a rank are never compared, they follow in discovery order.
func SortByRank(entries []Entry) []Entry {
	ranked := make([]Entry, 0, len(entries))
	var unranked []Entry
	for _, e := range entries {
		if e.Rank == nil {
			unranked = append(unranked, e)
			continue
		}
		ranked = append(ranked, e)
	}
	slices.SortStableFunc(ranked, func(a, b Entry) int {
		switch {
		case *a.Rank < *b.Rank:
			return -1
		case *a.Rank > *b.Rank:
			return 1
		}
		return 0
	})
	return append(ranked, unranked...)
}

// DropUnknown removes entries whose username could not be resolved.
func DropUnknown(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Username)
		if name == "" || name == UnknownUsername {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Finalize applies dedupe then rank ordering.
func Finalize(entries []Entry) []Entry {
	return SortByRank(Dedupe(entries))
}
