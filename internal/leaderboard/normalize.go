package leaderboard

import (
	"fmt"
	"math"
	"strings"
)

// Field is an ordered chain of dotted paths, the first present value wins.
type Field struct {
	Paths []string
	// Zero makes a numeric field fall back to 0 instead of null.
	Zero bool
	// Text is the fallback of a string field.
	Text string
}

func chain(paths ...string) Field {
	return Field{Paths: paths}
}

// Shape maps the raw layout of one source onto Entry fields.
type Shape struct {
	Name        string
	Username    Field
	UserID      Field
	Rank        Field
	PP          Field
	Accuracy    Field
	PlayCount   Field
	RankedScore Field
	GlobalRank  Field
	CountryRank Field
	AvatarURL   Field
}

// RankingShape reads items of the rankings endpoints, both the nested
// {user: {...}} form and flat items.
var RankingShape = Shape{
	Name:        "ranking",
	Username:    Field{Paths: []string{"user.username", "username"}, Text: UnknownUsername},
	UserID:      chain("user.id", "user_id", "id"),
	Rank:        chain("rank", "country_rank", "statistics.country_rank", "user.statistics.country_rank"),
	PP:          chain("pp", "statistics.pp", "user.statistics.pp"),
	Accuracy:    Field{Paths: []string{"hit_accuracy", "statistics.hit_accuracy", "user.statistics.hit_accuracy", "accuracy"}, Zero: true},
	PlayCount:   Field{Paths: []string{"play_count", "statistics.play_count", "user.statistics.play_count"}, Zero: true},
	RankedScore: Field{Paths: []string{"ranked_score", "statistics.ranked_score", "user.statistics.ranked_score"}, Zero: true},
	GlobalRank:  chain("global_rank", "statistics.global_rank", "user.statistics.global_rank"),
	CountryRank: chain("country_rank", "statistics.country_rank", "user.statistics.country_rank"),
	AvatarURL:   chain("user.avatar_url", "avatar_url"),
}

// UserShape reads a user detail document. Every field defaults to null so a
// merge never overwrites known values with defaults.
var UserShape = Shape{
	Name:        "user",
	Username:    chain("username"),
	UserID:      chain("id"),
	PP:          chain("statistics.pp"),
	Accuracy:    chain("statistics.hit_accuracy"),
	PlayCount:   chain("statistics.play_count"),
	RankedScore: chain("statistics.ranked_score"),
	GlobalRank:  chain("statistics.global_rank"),
	CountryRank: chain("statistics.country_rank"),
	AvatarURL:   chain("avatar_url"),
}

// ScrapeShape reads the flat records produced by the page heuristics.
var ScrapeShape = Shape{
	Name:      "scrape",
	Username:  Field{Paths: []string{"username"}, Text: UnknownUsername},
	UserID:    chain("user_id"),
	Rank:      chain("rank"),
	PP:        chain("pp"),
	Accuracy:  chain("accuracy"),
	PlayCount: chain("play_count"),
	AvatarURL: chain("avatar_url"),
}

// Normalizer turns raw records into entries.
type Normalizer struct {
	webBase string
}

func NewNormalizer(webBase string) Normalizer {
	return Normalizer{webBase: strings.TrimRight(webBase, "/")}
}

// ProfileURL derives the public profile link of a user.
func (n Normalizer) ProfileURL(id *int64) string {
	if id == nil {
		return ProfilePlaceholder
	}
	return fmt.Sprintf("%s/users/%d", n.webBase, *id)
}

func (n Normalizer) Normalize(r Record, s Shape) Entry {
	id := resolveInt(r, s.UserID)
	return Entry{
		Username:    resolveString(r, s.Username),
		UserID:      id,
		Rank:        resolveInt(r, s.Rank),
		PP:          round2(resolveFloat(r, s.PP)),
		Accuracy:    round2(resolveFloat(r, s.Accuracy)),
		PlayCount:   resolveInt(r, s.PlayCount),
		RankedScore: resolveInt(r, s.RankedScore),
		GlobalRank:  resolveInt(r, s.GlobalRank),
		CountryRank: resolveInt(r, s.CountryRank),
		AvatarURL:   resolveString(r, s.AvatarURL),
		ProfileURL:  n.ProfileURL(id),
	}
}

func (n Normalizer) NormalizeAll(records []Record, s Shape) []Entry {
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		out = append(out, n.Normalize(r, s))
	}
	return out
}

func resolveString(r Record, f Field) string {
	for _, path := range f.Paths {
		v, ok := r.Lookup(path)
		if !ok {
			continue
		}
		if s, ok := presentString(v); ok {
			return s
		}
	}
	return f.Text
}

func resolveInt(r Record, f Field) *int64 {
	for _, path := range f.Paths {
		v, ok := r.Lookup(path)
		if !ok {
			continue
		}
		if n, ok := presentInt(v); ok {
			return &n
		}
	}
	if f.Zero {
		zero := int64(0)
		return &zero
	}
	return nil
}

func resolveFloat(r Record, f Field) *float64 {
	for _, path := range f.Paths {
		v, ok := r.Lookup(path)
		if !ok {
			continue
		}
		if n, ok := presentFloat(v); ok {
			return &n
		}
	}
	if f.Zero {
		zero := 0.0
		return &zero
	}
	return nil
}

func round2(f *float64) *float64 {
	if f == nil {
		return nil
	}
	r := math.Round(*f*100) / 100
	return &r
}
