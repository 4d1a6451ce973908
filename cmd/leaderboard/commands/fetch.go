package commands

import (
	"context"
	"fmt"
	"osu-leaderboard/internal/components/chrono"
	"osu-leaderboard/internal/components/notify"
	"osu-leaderboard/internal/components/telemetry"
	"osu-leaderboard/internal/config"
	"osu-leaderboard/internal/leaderboard"
	"osu-leaderboard/internal/osu"
	"osu-leaderboard/internal/snapshot"
	"osu-leaderboard/internal/sources"

	"github.com/spf13/cobra"
)

const report_fetch_telemetry = "fetch.telemetry"

type fetchFlags struct {
	country  string
	output   string
	enrich   bool
	limit    int
	dumpHttp string
}

// apply copies every flag that was explicitly set onto cfg.
func (f fetchFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("country") {
		cfg.Country = f.country
	}
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("enrich") {
		cfg.Enrich = f.enrich
	}
	if flags.Changed("limit") {
		cfg.Limit = f.limit
	}
	cfg.Normalize()
}

func newFetchCommand(global *globalFlags) *cobra.Command {
	f := fetchFlags{}
	cmd := &cobra.Command{
		Use:   "fetch [--country <code>] [--output <path>] [--enrich] [--limit <n>]",
		Short: "Fetches the country leaderboard and writes a snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)

			_, err = Fetch(cmd.Context(), cfg, FetchOptions{
				DumpDir: f.dumpHttp,
				Time:    chrono.NewStandardTime(),
			}, telemetry.SlogAPI{})
			return err
		},
	}
	cmd.Flags().StringVar(&f.country, "country", "", "2 letter country code, overrides OSU_COUNTRY.")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Snapshot path, overrides OSU_OUTPUT.")
	cmd.Flags().BoolVar(&f.enrich, "enrich", false, "Fetch per-user details for api results.")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum entries per source, overrides OSU_LIMIT.")
	cmd.Flags().StringVar(&f.dumpHttp, "dump-http", "", "Write every HTTP exchange into this directory.")
	return cmd
}

type FetchOptions struct {
	// DumpDir receives HTTP transcripts when set.
	DumpDir string
	Time    chrono.TimeAPI
}

// Fetch validates cfg, resolves a snapshot and writes it to cfg.Output. A
// failure notice is mailed for every error past validation.
func Fetch(ctx context.Context, cfg config.Config, opts FetchOptions, tel telemetry.API) (leaderboard.Snapshot, error) {
	err := cfg.Validate()
	if err != nil {
		return leaderboard.Snapshot{}, err
	}

	otel, err := telemetry.Setup(ctx, "osu-leaderboard", cfg.Telemetry)
	if err != nil {
		tel.ReportBroken(report_fetch_telemetry, err)
	}
	defer otel.Shutdown(context.Background())

	snap, err := fetch(ctx, cfg, opts, tel)
	if err != nil {
		mail := notify.NewEmail(cfg.Smtp, tel)
		mail.NotifyFailure(
			ctx,
			fmt.Sprintf("osu! leaderboard: %s fetch failed", cfg.Country),
			fmt.Sprintf("The leaderboard run for %s did not produce %s.\n\n%v\n", cfg.Country, cfg.Output, err),
		)
		return leaderboard.Snapshot{}, err
	}
	return snap, nil
}

func fetch(ctx context.Context, cfg config.Config, opts FetchOptions, tel telemetry.API) (leaderboard.Snapshot, error) {
	if opts.Time == nil {
		opts.Time = chrono.NewStandardTime()
	}

	clientOpts := osu.Options{
		ClientID:          cfg.ClientID,
		ClientSecret:      cfg.ClientSecret,
		Mode:              cfg.Mode,
		APIBase:           cfg.APIBase,
		TokenURL:          cfg.TokenURL,
		WebBase:           cfg.WebBase,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.RequestsPerSecond,
		BypassCloudflare:  cfg.BypassCloudflare,
	}
	if opts.DumpDir != "" {
		output, err := telemetry.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return leaderboard.Snapshot{}, err
		}
		clientOpts.Dump = output
	}

	client, err := osu.NewClient(clientOpts, tel)
	if err != nil {
		return leaderboard.Snapshot{}, err
	}

	normalizer := leaderboard.NewNormalizer(cfg.WebBase)
	resolverOpts := leaderboard.ResolverOptions{
		Country: cfg.Country,
		Limit:   cfg.Limit,
	}
	if cfg.Enrich {
		enricher := leaderboard.NewEnricher(client, normalizer, tel)
		resolverOpts.Enricher = &enricher
	}

	resolver := leaderboard.NewResolver(
		client,
		[]leaderboard.Source{
			sources.NewRankingSource(client, cfg.Mode, cfg.RankingCandidates, tel),
			sources.NewCursorSource(client, cfg.Mode, cfg.MaxCursorPages, tel),
			sources.NewScrapeSource(client, cfg.WebBase, cfg.Mode, cfg.ScrapePages, nil, tel),
		},
		normalizer,
		opts.Time,
		tel,
		resolverOpts,
	)

	snap, err := resolver.Run(ctx)
	if err != nil {
		return leaderboard.Snapshot{}, err
	}

	err = snapshot.Write(cfg.Output, snap)
	if err != nil {
		return leaderboard.Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	tel.ReportInfo(fmt.Sprintf("%s written with %d items", cfg.Output, len(snap.Items)), telemetry.KV{Key: "source", Value: snap.Source})
	telemetry.ReportProcessStats(tel)

	return snap, nil
}
