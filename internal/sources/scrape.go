package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"osu-leaderboard/internal/components/assert"
	"osu-leaderboard/internal/components/telemetry"
	"osu-leaderboard/internal/leaderboard"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_scrape_page    = "scrape.page"
	report_scrape_extract = "scrape.extract"
)

// ScrapeSource reads the public ranking pages and runs every extractor over
// each page, results are pooled and deduplicated by username.
type ScrapeSource struct {
	pages      PageFetcher
	webBase    string
	mode       string
	pageCount  int
	extractors []Extractor
	tel        telemetry.API
}

func NewScrapeSource(
	pages PageFetcher,
	webBase, mode string,
	pageCount int,
	extractors []Extractor,
	tel telemetry.API,
) ScrapeSource {
	assert.NotNil(pages)
	assert.NotNil(tel)
	assert.NotEmptyStr(webBase)
	assert.Positive(pageCount, "scrape pages")
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}
	return ScrapeSource{
		pages:      pages,
		webBase:    strings.TrimRight(webBase, "/"),
		mode:       mode,
		pageCount:  pageCount,
		extractors: extractors,
		tel:        telemetry.NewScopedAPI("scrape_source", tel),
	}
}

func (s ScrapeSource) Name() string {
	return "scrape"
}

func (s ScrapeSource) Tag() leaderboard.SourceTag {
	return leaderboard.SourceScrape
}

func (s ScrapeSource) Shape() leaderboard.Shape {
	return leaderboard.ScrapeShape
}

func (s ScrapeSource) pageUrl(country string, page int) string {
	return fmt.Sprintf(
		"%s/rankings/%s/performance?country=%s&page=%d",
		s.webBase, url.PathEscape(s.mode), url.QueryEscape(country), page,
	)
}

// Attempt ignores the token, the ranking pages are public.
func (s ScrapeSource) Attempt(ctx context.Context, _ string, country string, limit int) ([]leaderboard.Record, error) {
	var pooled []leaderboard.Record
	for page := 1; page <= s.pageCount; page++ {
		pageUrl := s.pageUrl(country, page)

		body, err := s.pages.Page(ctx, pageUrl)
		if err != nil {
			s.tel.ReportWarning(report_scrape_page, &leaderboard.AdapterFailure{
				Source:    s.Name(),
				Candidate: pageUrl,
				Err:       err,
			})
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			s.tel.ReportWarning(report_scrape_page, &leaderboard.AdapterFailure{
				Source:    s.Name(),
				Candidate: pageUrl,
				Err:       fmt.Errorf("parse html: %w", err),
			})
			continue
		}

		pooled = append(pooled, s.extract(doc)...)
	}

	records := dedupeRecords(pooled)
	if len(records) == 0 {
		return nil, errors.New("no page produced records")
	}
	return truncate(records, limit), nil
}

// extract runs every extractor, none of them short-circuits the others.
func (s ScrapeSource) extract(doc *goquery.Document) []leaderboard.Record {
	var out []leaderboard.Record
	for _, extractor := range s.extractors {
		records := extractor.Extract(doc)
		if len(records) == 0 {
			s.tel.ReportDebug(report_scrape_extract, extractor.Name(), "no records")
			continue
		}
		s.tel.ReportDebug(report_scrape_extract, extractor.Name(), len(records))
		out = append(out, records...)
	}
	return out
}

// dedupeRecords drops records without a username and keeps the first record
// of every case-insensitive username.
func dedupeRecords(records []leaderboard.Record) []leaderboard.Record {
	seen := map[string]struct{}{}
	var out []leaderboard.Record
	for _, r := range records {
		name, _ := r["username"].(string)
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
