package sources

import (
	"context"
	"errors"
	"net/url"
	"osu-leaderboard/internal/components/assert"
	"osu-leaderboard/internal/components/telemetry"
	"osu-leaderboard/internal/leaderboard"
	"strconv"
	"strings"
)

const report_ranking_candidate = "ranking.candidate"

// DefaultRankingCandidates are the url shapes of the country performance
// ranking, tried in order. {mode}, {country} and {limit} are substituted.
var DefaultRankingCandidates = []string{
	"rankings/{mode}/performance?country={country}&limit={limit}",
	"rankings/{mode}/performance?country={country}&limit={limit}&filter=all",
	"rankings/{mode}/performance?country={country}&limit={limit}&cursor[page]=1",
}

// RankingSource queries a fixed list of ranking url candidates and returns
// the first one that yields records.
type RankingSource struct {
	api        JSONGetter
	mode       string
	candidates []string
	tel        telemetry.API
}

func NewRankingSource(api JSONGetter, mode string, candidates []string, tel telemetry.API) RankingSource {
	assert.NotNil(api)
	assert.NotNil(tel)
	assert.NotEmptyStr(mode)
	if len(candidates) == 0 {
		candidates = DefaultRankingCandidates
	}
	return RankingSource{
		api:        api,
		mode:       mode,
		candidates: candidates,
		tel:        telemetry.NewScopedAPI("ranking_source", tel),
	}
}

func (s RankingSource) Name() string {
	return "ranking"
}

func (s RankingSource) Tag() leaderboard.SourceTag {
	return leaderboard.SourceAPI
}

func (s RankingSource) Shape() leaderboard.Shape {
	return leaderboard.RankingShape
}

func expandCandidate(template, mode, country string, limit int) string {
	return strings.NewReplacer(
		"{mode}", url.PathEscape(mode),
		"{country}", url.QueryEscape(country),
		"{limit}", strconv.Itoa(limit),
	).Replace(template)
}

func (s RankingSource) Attempt(ctx context.Context, token, country string, limit int) ([]leaderboard.Record, error) {
	for _, template := range s.candidates {
		path := expandCandidate(template, s.mode, country, limit)

		doc, err := s.api.GetJSON(ctx, token, path)
		if err != nil {
			s.tel.ReportWarning(report_ranking_candidate, &leaderboard.AdapterFailure{
				Source:    s.Name(),
				Candidate: path,
				Err:       err,
			})
			continue
		}

		records := extractRecords(doc)
		if len(records) == 0 {
			s.tel.ReportWarning(report_ranking_candidate, &leaderboard.AdapterFailure{
				Source:    s.Name(),
				Candidate: path,
				Err:       errors.New("no ranking list in response"),
			})
			continue
		}

		s.tel.ReportDebug("candidate succeeded", path, len(records))
		return truncate(records, limit), nil
	}
	return nil, errors.New("every ranking candidate failed")
}
