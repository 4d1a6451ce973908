package commands

import (
	"fmt"
	"io"
	"osu-leaderboard/internal/leaderboard"
	"osu-leaderboard/internal/snapshot"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newShowCommand(global *globalFlags) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "show [path/to/leaderboard.json] [--user <name>]",
		Short: "Prints a snapshot as a table.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := global.load()
				if err != nil {
					return err
				}
				path = cfg.Output
			}

			snap, err := snapshot.Read(path)
			if err != nil {
				return err
			}

			items := snap.Items
			if user != "" {
				match, ok := closestEntry(items, user)
				if !ok {
					return fmt.Errorf("%s has no entries", path)
				}
				items = []leaderboard.Entry{match}
			}

			renderTable(cmd.OutOrStdout(), snap, items)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Only print the entry whose username is closest to this name.")
	return cmd
}

// closestEntry returns the entry whose username is most similar to name.
func closestEntry(items []leaderboard.Entry, name string) (leaderboard.Entry, bool) {
	target := strings.ToLower(name)
	best := -1
	bestSimilarity := -1.0
	for i, item := range items {
		similarity := matchr.JaroWinkler(strings.ToLower(item.Username), target, false)
		if similarity > bestSimilarity {
			best = i
			bestSimilarity = similarity
		}
	}
	if best < 0 {
		return leaderboard.Entry{}, false
	}
	return items[best], true
}

func formatInt(n *int64) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

func formatFloat(f *float64, suffix string) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%s", *f, suffix)
}

func renderTable(w io.Writer, snap leaderboard.Snapshot, items []leaderboard.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Username", "PP", "Accuracy", "Play count", "Profile"})

	for _, item := range items {
		t.AppendRow(table.Row{
			formatInt(item.Rank),
			item.Username,
			formatFloat(item.PP, ""),
			formatFloat(item.Accuracy, "%"),
			formatInt(item.PlayCount),
			item.ProfileURL,
		})
	}

	t.SetCaption(
		"%s from %s, updated %s",
		snap.Country,
		snap.Source,
		time.UnixMilli(snap.UpdatedAt).UTC().Format(time.RFC3339),
	)
	t.SetStyle(table.StyleRounded)
	t.Render()
}
