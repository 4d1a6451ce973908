package sources

import (
	"osu-leaderboard/internal/components/htmlutil"
	"osu-leaderboard/internal/leaderboard"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor is one strategy for finding leaderboard rows in a ranking page.
type Extractor interface {
	Name() string
	Extract(doc *goquery.Document) []leaderboard.Record
}

// DefaultExtractors returns the heuristics from the most to the least
// structured one, earlier results win on duplicate usernames.
func DefaultExtractors() []Extractor {
	return []Extractor{TableRows{}, ClassRows{}, ProfileAnchors{}}
}

func isProfilePath(path string) bool {
	return strings.Contains(path, "/users/") || strings.Contains(path, "/u/")
}

// profileUserID returns the first numeric segment after /users/ or /u/,
// ex. "/users/4504101/osu" -> "4504101".
func profileUserID(path string) string {
	rest := ""
	for _, prefix := range []string{"/users/", "/u/"} {
		if idx := strings.Index(path, prefix); idx >= 0 {
			rest = path[idx+len(prefix):]
			break
		}
	}
	for _, segment := range strings.Split(rest, "/") {
		if segment != "" && htmlutil.DigitsOnly(segment) == segment {
			return segment
		}
	}
	return ""
}

// profileAnchor returns the first anchor inside sel that links to a user
// profile and has a visible name.
func profileAnchor(sel *goquery.Selection) (htmlutil.Anchor, bool) {
	var found htmlutil.Anchor
	ok := false
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		anchor, exists := htmlutil.GetAnchor(a)
		if !exists || anchor.Name == "" || !isProfilePath(anchor.Path) {
			return true
		}
		found = anchor
		ok = true
		return false
	})
	return found, ok
}

func avatarUrl(sel *goquery.Selection) string {
	img := sel.Find("img").First()
	if src, ok := img.Attr("src"); ok && src != "" {
		return src
	}
	if src, ok := img.Attr("data-src"); ok {
		return src
	}
	if bg, ok := sel.Find("[data-bg]").First().Attr("data-bg"); ok {
		return bg
	}
	return ""
}

// numericText is the text of sel, or nothing when sel holds a link (its text
// is then a name, not a number).
func numericText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 || sel.Is("a") || sel.Find("a").Length() > 0 {
		return ""
	}
	return htmlutil.Text(sel)
}

func newRecord(anchor htmlutil.Anchor, rank, pp, avatar string) leaderboard.Record {
	return leaderboard.Record{
		"username":   anchor.Name,
		"user_id":    profileUserID(anchor.Path),
		"rank":       htmlutil.DigitsOnly(rank),
		"pp":         htmlutil.DigitsOnly(pp),
		"avatar_url": avatar,
	}
}

// TableRows reads generic table rows: the first cell holds the rank, the
// performance column (or the last cell) holds pp.
type TableRows struct{}

func (TableRows) Name() string {
	return "table-rows"
}

func (TableRows) Extract(doc *goquery.Document) []leaderboard.Record {
	var out []leaderboard.Record
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		anchor, ok := profileAnchor(row)
		if !ok {
			return
		}

		ppCell := cells.Filter(`[class*="focused"], [class*="performance"]`).First()
		if ppCell.Length() == 0 {
			ppCell = cells.Last()
		}

		out = append(out, newRecord(
			anchor,
			numericText(cells.First()),
			numericText(ppCell),
			avatarUrl(row),
		))
	})
	return out
}

const classRowSelector = `[class*="ranking-page-table__row"], [class*="ranking-row"], [class*="leaderboard-row"], li[class*="ranking"]`

// ClassRows reads containers whose class names mark them as ranking rows.
type ClassRows struct{}

func (ClassRows) Name() string {
	return "class-rows"
}

func (ClassRows) Extract(doc *goquery.Document) []leaderboard.Record {
	var out []leaderboard.Record
	doc.Find(classRowSelector).Each(func(_ int, row *goquery.Selection) {
		anchor, ok := profileAnchor(row)
		if !ok {
			return
		}

		rank := row.Find(`[class*="--rank"], [class*="__rank"], .rank`).First()
		if rank.Length() == 0 {
			rank = row.Children().First()
		}
		pp := row.Find(`[class*="performance"], [class*="focused"], .pp`).First()

		out = append(out, newRecord(
			anchor,
			numericText(rank),
			numericText(pp),
			avatarUrl(row),
		))
	})
	return out
}

// ProfileAnchors takes any link to a user profile, and reads rank and avatar
// from the nearest row-like ancestor when there is one.
type ProfileAnchors struct{}

func (ProfileAnchors) Name() string {
	return "profile-anchors"
}

func (ProfileAnchors) Extract(doc *goquery.Document) []leaderboard.Record {
	var out []leaderboard.Record
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		anchor, ok := htmlutil.GetAnchor(a)
		if !ok || anchor.Name == "" || !isProfilePath(anchor.Path) {
			return
		}

		row := a.Closest(`tr, li, [class*="row"]`)
		if row.Length() == 0 {
			out = append(out, newRecord(anchor, "", "", ""))
			return
		}
		out = append(out, newRecord(anchor, numericText(row.Children().First()), "", avatarUrl(row)))
	})
	return out
}
