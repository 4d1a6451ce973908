package leaderboard

import (
	"context"
	"fmt"
	"osu-leaderboard/internal/components/assert"
	"osu-leaderboard/internal/components/telemetry"
)

const (
	report_enrich_user       = "enrich-user"
	report_enrich_missing_id = "enrich-missing-id"
	report_enrich_progress   = "enrich-progress"
)

// Enricher merges per-user detail documents into a base ranking list, one
// user at a time.
type Enricher struct {
	users      UserLookup
	normalizer Normalizer
	tel        telemetry.API
}

func NewEnricher(users UserLookup, normalizer Normalizer, tel telemetry.API) Enricher {
	assert.NotNil(users)
	assert.NotNil(tel)
	return Enricher{
		users:      users,
		normalizer: normalizer,
		tel:        telemetry.NewScopedAPI("enrichment", tel),
	}
}

// Enrich returns the entries whose lookup succeeded, merged with their
// details. Entries without a user id are passed through untouched.
func (e Enricher) Enrich(ctx context.Context, token string, base []Entry) []Entry {
	out := make([]Entry, 0, len(base))
	for i, entry := range base {
		e.tel.ReportInfo(report_enrich_progress, fmt.Sprintf("%d / %d", i+1, len(base)), entry.Username)

		if entry.UserID == nil {
			e.tel.ReportWarning(report_enrich_missing_id, entry.Username)
			out = append(out, entry)
			continue
		}

		doc, err := e.users.User(ctx, token, *entry.UserID)
		if err != nil {
			e.tel.ReportWarning(report_enrich_user, &EnrichmentError{UserID: *entry.UserID, Err: err})
			continue
		}
		details := e.normalizer.Normalize(Record(doc), UserShape)
		out = append(out, Merge(entry, details))
	}
	return out
}
