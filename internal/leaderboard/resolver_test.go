package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"osu-leaderboard/internal/components/chrono"
	"osu-leaderboard/internal/components/telemetry"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) Token(ctx context.Context) (string, error) {
	return f.token, f.err
}

type fakeSource struct {
	name    string
	tag     SourceTag
	shape   Shape
	records []Record
	err     error
	calls   *int
}

func (f fakeSource) Name() string   { return f.name }
func (f fakeSource) Tag() SourceTag { return f.tag }
func (f fakeSource) Shape() Shape   { return f.shape }

func (f fakeSource) Attempt(ctx context.Context, token, country string, limit int) ([]Record, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.records, f.err
}

type fakeUsers struct {
	fail map[int64]bool
}

func (f fakeUsers) User(ctx context.Context, token string, id int64) (map[string]any, error) {
	if f.fail[id] {
		return nil, fmt.Errorf("status 500")
	}
	return map[string]any{
		"id": id,
		"statistics": map[string]any{
			"play_count": id * 100,
		},
	}, nil
}

var fixedTime = chrono.FixedTime{At: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

func newTestResolver(tel telemetry.API, tokens TokenProvider, opts ResolverOptions, sources ...Source) Resolver {
	if opts.Country == "" {
		opts.Country = "IQ"
	}
	if opts.Limit == 0 {
		opts.Limit = 50
	}
	return NewResolver(tokens, sources, NewNormalizer("https://osu.ppy.sh"), fixedTime, tel, opts)
}

func TestResolverAliceScenario(t *testing.T) {
	tel := telemetry.NewRecorder()
	r := newTestResolver(tel, fakeTokens{token: "t"}, ResolverOptions{}, fakeSource{
		name:  "ranking",
		tag:   SourceAPI,
		shape: RankingShape,
		records: []Record{
			{"user": map[string]any{"id": 7, "username": "Alice"}, "pp": 1200},
		},
	})

	snap, err := r.Run(context.Background())
	require.NoError(t, err)

	expected := Snapshot{
		UpdatedAt: fixedTime.At.UnixMilli(),
		Country:   "IQ",
		Source:    SourceAPI,
		Items: []Entry{{
			Username:    "Alice",
			UserID:      i64(7),
			PP:          f64(1200),
			Accuracy:    f64(0),
			PlayCount:   i64(0),
			RankedScore: i64(0),
			ProfileURL:  "https://osu.ppy.sh/users/7",
		}},
	}
	diff := cmp.Diff(expected, snap)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, int64(1), tel.Counts["resolver: entries"])
}

func TestResolverFallsBackToNextSource(t *testing.T) {
	testCases := []struct {
		name  string
		first fakeSource
	}{
		{
			name:  "empty",
			first: fakeSource{name: "ranking", tag: SourceAPI, shape: RankingShape},
		},
		{
			name:  "error",
			first: fakeSource{name: "ranking", tag: SourceAPI, shape: RankingShape, err: errors.New("status 404")},
		},
		{
			name: "only unknown scrape rows",
			first: fakeSource{name: "scrape-first", tag: SourceScrape, shape: ScrapeShape, records: []Record{
				{"rank": "1"},
				{"username": UnknownUsername},
			}},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			tel := telemetry.NewRecorder()
			calls := 0
			second := fakeSource{
				name:    "scrape",
				tag:     SourceScrape,
				shape:   ScrapeShape,
				records: []Record{{"username": "Bob", "rank": "5"}},
				calls:   &calls,
			}
			r := newTestResolver(tel, fakeTokens{token: "t"}, ResolverOptions{}, test.first, second)

			snap, err := r.Run(context.Background())
			require.NoError(t, err)
			require.Equal(t, 1, calls)
			require.Equal(t, SourceScrape, snap.Source)
			require.Equal(t, []Entry{{Username: "Bob", Rank: i64(5), ProfileURL: ProfilePlaceholder}}, snap.Items)
			require.Equal(t, 1, telemetry.HasSuffix(tel.Warnings, "attempt"))
		})
	}
}

func TestResolverNoData(t *testing.T) {
	r := newTestResolver(
		telemetry.NewRecorder(),
		fakeTokens{token: "t"},
		ResolverOptions{},
		fakeSource{name: "ranking", tag: SourceAPI, shape: RankingShape},
		fakeSource{name: "scrape", tag: SourceScrape, shape: ScrapeShape, err: errors.New("all pages failed")},
	)

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrNoData)
	require.Contains(t, err.Error(), "ranking, scrape")
}

func TestResolverAuthError(t *testing.T) {
	calls := 0
	r := newTestResolver(
		telemetry.NewRecorder(),
		fakeTokens{err: errors.New("invalid_client")},
		ResolverOptions{},
		fakeSource{name: "ranking", tag: SourceAPI, shape: RankingShape, calls: &calls},
	)

	_, err := r.Run(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.NotErrorIs(t, err, ErrNoData)
	require.Equal(t, 0, calls)
}

func TestEnrichmentFaultIsolation(t *testing.T) {
	tel := telemetry.NewRecorder()

	var records []Record
	for id := 1; id <= 5; id++ {
		records = append(records, Record{
			"user": map[string]any{"id": id, "username": fmt.Sprintf("user%d", id)},
			"pp":   1000 - id,
			"rank": id,
		})
	}

	enricher := NewEnricher(fakeUsers{fail: map[int64]bool{3: true}}, NewNormalizer("https://osu.ppy.sh"), tel)
	r := newTestResolver(tel, fakeTokens{token: "t"}, ResolverOptions{Enricher: &enricher}, fakeSource{
		name:    "ranking",
		tag:     SourceAPI,
		shape:   RankingShape,
		records: records,
	})

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items, 4)

	for _, e := range snap.Items {
		require.NotEqual(t, int64(3), *e.UserID)
		require.Equal(t, fmt.Sprintf("user%d", *e.UserID), e.Username)
		require.Equal(t, *e.UserID, *e.Rank)
		require.Equal(t, float64(1000-*e.UserID), *e.PP)
		require.Equal(t, *e.UserID*100, *e.PlayCount)
	}

	require.Equal(t, 1, telemetry.HasSuffix(tel.Warnings, "enrich-user"))
	require.Contains(t, tel.Lines(), "enrichment: enrich-progress 3 / 5 user3")
}

func TestEnrichmentOnlyForAPISources(t *testing.T) {
	tel := telemetry.NewRecorder()
	enricher := NewEnricher(fakeUsers{fail: map[int64]bool{1: true}}, NewNormalizer("https://osu.ppy.sh"), tel)
	r := newTestResolver(tel, fakeTokens{token: "t"}, ResolverOptions{Enricher: &enricher}, fakeSource{
		name:    "scrape",
		tag:     SourceScrape,
		shape:   ScrapeShape,
		records: []Record{{"username": "Bob", "user_id": "1"}},
	})

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	require.Empty(t, tel.Infos)
}

func TestEnrichmentEmptyingListAdvances(t *testing.T) {
	tel := telemetry.NewRecorder()
	enricher := NewEnricher(fakeUsers{fail: map[int64]bool{1: true, 2: true}}, NewNormalizer("https://osu.ppy.sh"), tel)
	r := newTestResolver(tel, fakeTokens{token: "t"}, ResolverOptions{Enricher: &enricher},
		fakeSource{
			name:  "ranking",
			tag:   SourceAPI,
			shape: RankingShape,
			records: []Record{
				{"user": map[string]any{"id": 1, "username": "a"}},
				{"user": map[string]any{"id": 2, "username": "b"}},
			},
		},
		fakeSource{
			name:    "scrape",
			tag:     SourceScrape,
			shape:   ScrapeShape,
			records: []Record{{"username": "c", "rank": "1"}},
		},
	)

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceScrape, snap.Source)
	require.Equal(t, 1, telemetry.HasSuffix(tel.Broken, "enrich"))
}

func TestEnricherPassesThroughMissingID(t *testing.T) {
	tel := telemetry.NewRecorder()
	enricher := NewEnricher(fakeUsers{}, NewNormalizer("https://osu.ppy.sh"), tel)

	base := []Entry{{Username: "nobody", ProfileURL: ProfilePlaceholder}}
	got := enricher.Enrich(context.Background(), "t", base)
	require.Equal(t, base, got)
	require.Equal(t, 1, telemetry.HasSuffix(tel.Warnings, "enrich-missing-id"))
}
