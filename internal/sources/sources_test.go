package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"osu-leaderboard/internal/components/telemetry"
	"osu-leaderboard/internal/leaderboard"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	responses map[string]string
	requested []string
}

func (f *fakeAPI) GetJSON(ctx context.Context, token, path string) (map[string]any, error) {
	f.requested = append(f.requested, path)
	body, ok := f.responses[path]
	if !ok {
		return nil, fmt.Errorf("GET %s: status 404", path)
	}
	decoder := json.NewDecoder(strings.NewReader(body))
	decoder.UseNumber()
	var doc map[string]any
	err := decoder.Decode(&doc)
	return doc, err
}

type fakePages struct {
	pages     map[string]string
	requested []string
}

func (f *fakePages) Page(ctx context.Context, url string) ([]byte, error) {
	f.requested = append(f.requested, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, errors.New("status 503")
	}
	return []byte(body), nil
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	buf, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(buf)
}

func usernames(records []leaderboard.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r["username"].(string))
	}
	return out
}

func TestRankingSourceFallsThroughCandidates(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"rankings/osu/performance?country=IQ&limit=2":            `{"ranking": []}`,
		"rankings/osu/performance?country=IQ&limit=2&filter=all": `{"ranking": {"items": [{"user": {"username": "a"}}, {"user": {"username": "b"}}, {"user": {"username": "c"}}]}}`,
	}}
	tel := telemetry.NewRecorder()
	source := NewRankingSource(api, "osu", nil, tel)

	records, err := source.Attempt(context.Background(), "t", "IQ", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, []string{
		records[0]["user"].(map[string]any)["username"].(string),
		records[1]["user"].(map[string]any)["username"].(string),
	})
	require.Len(t, records, 2)
	require.Len(t, api.requested, 2)
	require.Equal(t, 1, telemetry.HasSuffix(tel.Warnings, "ranking.candidate"))
}

func TestRankingSourceAllCandidatesFail(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"rankings/osu/performance?country=IQ&limit=5": `{"data": "nope"}`,
	}}
	tel := telemetry.NewRecorder()
	source := NewRankingSource(api, "osu", nil, tel)

	_, err := source.Attempt(context.Background(), "t", "IQ", 5)
	require.Error(t, err)
	require.Len(t, api.requested, len(DefaultRankingCandidates))
	require.Equal(t, len(DefaultRankingCandidates), telemetry.HasSuffix(tel.Warnings, "ranking.candidate"))
}

func TestExtractRecordsPaths(t *testing.T) {
	testCases := []struct {
		body     string
		expected int
	}{
		{body: `{"ranking": [{"a": 1}, {"a": 2}]}`, expected: 2},
		{body: `{"ranking": {"items": [{"a": 1}]}}`, expected: 1},
		{body: `{"items": [{"a": 1}, "skip"]}`, expected: 1},
		{body: `{"ranking": [], "data": [{"a": 1}]}`, expected: 1},
		{body: `{"total": 0}`, expected: 0},
	}

	for _, test := range testCases {
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(test.body), &doc))
		require.Len(t, extractRecords(doc), test.expected, test.body)
	}
}

func rankingPage(names []string, cursor string) string {
	var items []string
	for _, name := range names {
		items = append(items, fmt.Sprintf(`{"user": {"username": %q}}`, name))
	}
	return fmt.Sprintf(`{"ranking": [%s], "cursor": %s}`, strings.Join(items, ","), cursor)
}

func TestCursorSource(t *testing.T) {
	base := "rankings/osu/performance?country=IQ"

	testCases := []struct {
		name      string
		responses map[string]string
		maxPages  int
		limit     int
		expected  []string
		requests  int
		truncated int
		err       bool
	}{
		{
			name: "follows cursor until null",
			responses: map[string]string{
				base:                     rankingPage([]string{"a", "b"}, `{"page": 2}`),
				base + "&cursor[page]=2": rankingPage([]string{"c"}, `null`),
			},
			maxPages: 4,
			limit:    50,
			expected: []string{"a", "b", "c"},
			requests: 2,
		},
		{
			name: "stops at page cap",
			responses: map[string]string{
				base:                     rankingPage([]string{"a"}, `{"page": 2}`),
				base + "&cursor[page]=2": rankingPage([]string{"b"}, `{"page": 3}`),
				base + "&cursor[page]=3": rankingPage([]string{"c"}, `null`),
			},
			maxPages:  2,
			limit:     50,
			expected:  []string{"a", "b"},
			requests:  2,
			truncated: 1,
		},
		{
			name: "stops at limit",
			responses: map[string]string{
				base:                     rankingPage([]string{"a", "b"}, `{"page": 2}`),
				base + "&cursor[page]=2": rankingPage([]string{"c", "d"}, `{"page": 3}`),
			},
			maxPages: 10,
			limit:    3,
			expected: []string{"a", "b", "c"},
			requests: 2,
		},
		{
			name: "keeps pages before a failure",
			responses: map[string]string{
				base: rankingPage([]string{"a"}, `{"page": 2}`),
			},
			maxPages: 4,
			limit:    50,
			expected: []string{"a"},
			requests: 2,
		},
		{
			name:      "first page fails",
			responses: map[string]string{},
			maxPages:  4,
			limit:     50,
			requests:  1,
			err:       true,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			api := &fakeAPI{responses: test.responses}
			tel := telemetry.NewRecorder()
			source := NewCursorSource(api, "osu", test.maxPages, tel)

			records, err := source.Attempt(context.Background(), "t", "IQ", test.limit)
			require.Len(t, api.requested, test.requests)
			require.Equal(t, test.truncated, telemetry.HasSuffix(tel.Warnings, "cursor.truncated"))
			if test.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			var names []string
			for _, r := range records {
				names = append(names, r["user"].(map[string]any)["username"].(string))
			}
			require.Equal(t, test.expected, names)
		})
	}
}

func TestNextCursor(t *testing.T) {
	testCases := []struct {
		body     string
		expected string
		ok       bool
	}{
		{body: `{"cursor_string": "eyJwYWdlIjoyfQ", "cursor": {"page": 2}}`, expected: "&cursor_string=eyJwYWdlIjoyfQ", ok: true},
		{body: `{"cursor": {"page": 2, "id": 10}}`, expected: "&cursor[id]=10&cursor[page]=2", ok: true},
		{body: `{"cursor": null}`},
		{body: `{"cursor": {}}`},
		{body: `{}`},
	}

	for _, test := range testCases {
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(test.body), &doc))
		got, ok := nextCursor(doc)
		require.Equal(t, test.ok, ok, test.body)
		require.Equal(t, test.expected, got, test.body)
	}
}

func TestHeuristicsOnRankingTable(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(readFixture(t, "rankings.html")))
	require.NoError(t, err)

	table := TableRows{}.Extract(doc)
	expected := []leaderboard.Record{
		{"username": "Alpha", "user_id": "1001", "rank": "1", "pp": "12345", "avatar_url": ""},
		{"username": "Beta", "user_id": "1002", "rank": "2", "pp": "11002", "avatar_url": ""},
	}
	diff := cmp.Diff(expected, table)
	if diff != "" {
		t.Fatal(diff)
	}

	classes := ClassRows{}.Extract(doc)
	diff = cmp.Diff(expected, classes)
	if diff != "" {
		t.Fatal(diff)
	}

	anchors := ProfileAnchors{}.Extract(doc)
	require.Equal(t, []string{"Alpha", "Beta", "Staff pick"}, usernames(anchors))
	require.Equal(t, "1", anchors[0]["rank"])
	require.Equal(t, "", anchors[2]["rank"])
	require.Equal(t, "3", anchors[2]["user_id"])
}

func TestProfileUserID(t *testing.T) {
	cases := []struct {
		path     string
		expected string
	}{
		{path: "/users/4504101", expected: "4504101"},
		{path: "/users/4504101/", expected: "4504101"},
		{path: "/users/4504101/osu", expected: "4504101"},
		{path: "/u/2001", expected: "2001"},
		{path: "/users/peppy", expected: ""},
		{path: "/rankings/osu/performance", expected: ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, profileUserID(test.path), test.path)
	}
}

func TestTableRowsModeSuffixedProfileLink(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<table><tbody>
		<tr>
			<td>#1</td>
			<td><a href="https://osu.ppy.sh/users/4504101/osu">WhiteCat</a></td>
			<td>20,000pp</td>
		</tr>
	</tbody></table>`))
	require.NoError(t, err)

	records := TableRows{}.Extract(doc)
	require.Len(t, records, 1)
	require.Equal(t, "WhiteCat", records[0]["username"])
	require.Equal(t, "4504101", records[0]["user_id"])
	require.Equal(t, "1", records[0]["rank"])
	require.Equal(t, "20000", records[0]["pp"])
}

func TestHeuristicsOnCards(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(readFixture(t, "cards.html")))
	require.NoError(t, err)

	require.Empty(t, TableRows{}.Extract(doc))

	classes := ClassRows{}.Extract(doc)
	expected := []leaderboard.Record{
		{"username": "Gamma", "user_id": "2001", "rank": "3", "pp": "9876", "avatar_url": "https://a.ppy.sh/2001"},
		{"username": "Delta", "user_id": "2002", "rank": "4", "pp": "9001", "avatar_url": ""},
	}
	diff := cmp.Diff(expected, classes)
	if diff != "" {
		t.Fatal(diff)
	}

	anchors := ProfileAnchors{}.Extract(doc)
	require.Equal(t, []string{"Gamma", "Delta"}, usernames(anchors))
	require.Equal(t, "3", anchors[0]["rank"])
}

type countingExtractor struct {
	name    string
	records []leaderboard.Record
	calls   *int
}

func (c countingExtractor) Name() string {
	return c.name
}

func (c countingExtractor) Extract(doc *goquery.Document) []leaderboard.Record {
	*c.calls++
	return c.records
}

func TestScrapeSourceRunsEveryExtractor(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://osu.ppy.sh/rankings/osu/performance?country=IQ&page=1": "<html></html>",
		"https://osu.ppy.sh/rankings/osu/performance?country=IQ&page=2": "<html></html>",
	}}

	var first, second int
	extractors := []Extractor{
		countingExtractor{name: "first", calls: &first, records: []leaderboard.Record{{"username": "Bob", "rank": "5"}}},
		countingExtractor{name: "second", calls: &second, records: []leaderboard.Record{{"username": "bob", "rank": ""}, {"rank": "9"}}},
	}
	source := NewScrapeSource(pages, "https://osu.ppy.sh/", "osu", 2, extractors, telemetry.NewRecorder())

	records, err := source.Attempt(context.Background(), "", "IQ", 50)
	require.NoError(t, err)
	require.Equal(t, 2, first)
	require.Equal(t, 2, second)
	require.Equal(t, []leaderboard.Record{{"username": "Bob", "rank": "5"}}, records)
}

func TestScrapeSourceFirstOccurrenceWins(t *testing.T) {
	page := `<html><body>
		<table><tr><td>#5</td><td><a href="/users/bob-profile">Bob</a></td></tr></table>
		<p><a href="/users/99">bob</a></p>
	</body></html>`
	pages := &fakePages{pages: map[string]string{
		"https://osu.ppy.sh/rankings/osu/performance?country=IQ&page=1": page,
	}}
	source := NewScrapeSource(pages, "https://osu.ppy.sh", "osu", 1, nil, telemetry.NewRecorder())

	records, err := source.Attempt(context.Background(), "", "IQ", 50)
	require.NoError(t, err)
	require.Len(t, records, 1)

	entry := leaderboard.NewNormalizer("https://osu.ppy.sh").Normalize(records[0], source.Shape())
	require.Equal(t, "Bob", entry.Username)
	require.NotNil(t, entry.Rank)
	require.Equal(t, int64(5), *entry.Rank)
	require.Nil(t, entry.UserID)
	require.Equal(t, leaderboard.ProfilePlaceholder, entry.ProfileURL)
}

func TestScrapeSourcePageFailures(t *testing.T) {
	tel := telemetry.NewRecorder()
	pages := &fakePages{pages: map[string]string{
		"https://osu.ppy.sh/rankings/osu/performance?country=IQ&page=2": readFixture(t, "cards.html"),
	}}
	source := NewScrapeSource(pages, "https://osu.ppy.sh", "osu", 2, nil, tel)

	records, err := source.Attempt(context.Background(), "", "IQ", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"Gamma"}, usernames(records))
	require.Equal(t, 1, telemetry.HasSuffix(tel.Warnings, "scrape.page"))

	empty := NewScrapeSource(&fakePages{}, "https://osu.ppy.sh", "osu", 2, nil, telemetry.NewRecorder())
	_, err = empty.Attempt(context.Background(), "", "IQ", 10)
	require.Error(t, err)
}
