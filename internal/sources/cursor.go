package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"osu-leaderboard/internal/components/assert"
	"osu-leaderboard/internal/components/telemetry"
	"osu-leaderboard/internal/leaderboard"
	"slices"
	"strings"
)

const (
	report_cursor_page      = "cursor.page"
	report_cursor_truncated = "cursor.truncated"
)

// CursorSource follows the pagination cursor of the ranking endpoint until
// it runs out, the limit is reached or maxPages pages were fetched.
type CursorSource struct {
	api      JSONGetter
	mode     string
	maxPages int
	tel      telemetry.API
}

func NewCursorSource(api JSONGetter, mode string, maxPages int, tel telemetry.API) CursorSource {
	assert.NotNil(api)
	assert.NotNil(tel)
	assert.NotEmptyStr(mode)
	assert.Positive(maxPages, "max cursor pages")
	return CursorSource{
		api:      api,
		mode:     mode,
		maxPages: maxPages,
		tel:      telemetry.NewScopedAPI("cursor_source", tel),
	}
}

func (s CursorSource) Name() string {
	return "cursor"
}

func (s CursorSource) Tag() leaderboard.SourceTag {
	return leaderboard.SourceAPI
}

func (s CursorSource) Shape() leaderboard.Shape {
	return leaderboard.RankingShape
}

// nextCursor renders the query suffix of the next page, false when the
// response signals there are no more pages.
func nextCursor(doc map[string]any) (string, bool) {
	if token, ok := doc["cursor_string"].(string); ok && token != "" {
		return "&cursor_string=" + url.QueryEscape(token), true
	}

	cursor, ok := doc["cursor"].(map[string]any)
	if !ok || len(cursor) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(cursor))
	for k := range cursor {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out strings.Builder
	for _, k := range keys {
		if cursor[k] == nil {
			continue
		}
		fmt.Fprintf(&out, "&cursor[%s]=%s", url.QueryEscape(k), url.QueryEscape(fmt.Sprint(cursor[k])))
	}
	if out.Len() == 0 {
		return "", false
	}
	return out.String(), true
}

func (s CursorSource) Attempt(ctx context.Context, token, country string, limit int) ([]leaderboard.Record, error) {
	base := fmt.Sprintf("rankings/%s/performance?country=%s", url.PathEscape(s.mode), url.QueryEscape(country))

	var out []leaderboard.Record
	query := ""
	for page := 1; ; page++ {
		path := base + query
		doc, err := s.api.GetJSON(ctx, token, path)
		if err != nil {
			// keep whatever the previous pages produced
			s.tel.ReportWarning(report_cursor_page, &leaderboard.AdapterFailure{
				Source:    s.Name(),
				Candidate: path,
				Err:       err,
			})
			break
		}
		out = append(out, extractRecords(doc)...)
		if len(out) >= limit {
			break
		}

		next, ok := nextCursor(doc)
		if !ok {
			break
		}
		if page >= s.maxPages {
			s.tel.ReportWarning(report_cursor_truncated, fmt.Sprintf("stopped after %d pages", page), len(out))
			break
		}
		query = next
	}

	if len(out) == 0 {
		return nil, errors.New("no page produced records")
	}
	return truncate(out, limit), nil
}
