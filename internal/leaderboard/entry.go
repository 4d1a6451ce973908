package leaderboard

import "fmt"

// SourceTag records which family of source produced a snapshot.
type SourceTag string

const (
	SourceAPI    SourceTag = "api"
	SourceScrape SourceTag = "scrape"
)

const (
	// UnknownUsername is used when no username could be resolved from a record.
	UnknownUsername = "Unknown"
	// ProfilePlaceholder is the profile url of an entry with no known user id.
	ProfilePlaceholder = "#"
)

// Entry is one row of a country leaderboard. Optional numbers are pointers,
// they serialize as null when unknown.
type Entry struct {
	Username    string   `json:"username"`
	UserID      *int64   `json:"user_id"`
	Rank        *int64   `json:"rank"`
	PP          *float64 `json:"pp"`
	Accuracy    *float64 `json:"accuracy"`
	PlayCount   *int64   `json:"play_count"`
	RankedScore *int64   `json:"ranked_score"`
	GlobalRank  *int64   `json:"global_rank"`
	CountryRank *int64   `json:"country_rank"`
	AvatarURL   string   `json:"avatar_url"`
	ProfileURL  string   `json:"profile_url"`
}

// Snapshot is the document written at the end of a run.
type Snapshot struct {
	// UpdatedAt is a millisecond epoch timestamp.
	UpdatedAt int64     `json:"updated_at"`
	Country   string    `json:"country"`
	Source    SourceTag `json:"source"`
	Items     []Entry   `json:"items"`
}

// Merge returns a copy of base where every field present in extra wins.
// Strings are present when non-empty, numbers when non-nil.
func Merge(base, extra Entry) Entry {
	out := base
	if extra.Username != "" && extra.Username != UnknownUsername {
		out.Username = extra.Username
	}
	if extra.UserID != nil {
		out.UserID = extra.UserID
		out.ProfileURL = extra.ProfileURL
	}
	mergeInt(&out.Rank, extra.Rank)
	mergeFloat(&out.PP, extra.PP)
	mergeFloat(&out.Accuracy, extra.Accuracy)
	mergeInt(&out.PlayCount, extra.PlayCount)
	mergeInt(&out.RankedScore, extra.RankedScore)
	mergeInt(&out.GlobalRank, extra.GlobalRank)
	mergeInt(&out.CountryRank, extra.CountryRank)
	if extra.AvatarURL != "" {
		out.AvatarURL = extra.AvatarURL
	}
	return out
}

func mergeInt(dst **int64, src *int64) {
	if src != nil {
		*dst = src
	}
}

func mergeFloat(dst **float64, src *float64) {
	if src != nil {
		*dst = src
	}
}

func (e Entry) String() string {
	rank := "-"
	if e.Rank != nil {
		rank = fmt.Sprint(*e.Rank)
	}
	return fmt.Sprintf("#%s %s", rank, e.Username)
}
