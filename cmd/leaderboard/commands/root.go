package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"osu-leaderboard/internal/components/telemetry"
	"osu-leaderboard/internal/config"
	"osu-leaderboard/internal/leaderboard"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	config  string
	envFile string
	verbose bool
}

func (g *globalFlags) load() (config.Config, error) {
	return config.Load(g.config, g.envFile)
}

func NewRootCommand() *cobra.Command {
	global := &globalFlags{}

	root := &cobra.Command{
		Use:           "leaderboard",
		Short:         "leaderboard builds snapshots of osu! country performance rankings.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			telemetry.InitSlog(global.verbose)
		},
	}
	root.PersistentFlags().StringVar(&global.config, "config", "leaderboard.json5", "Path to the json5 config file, a .local override is merged when present.")
	root.PersistentFlags().StringVar(&global.envFile, "env-file", ".env", "Path to a .env file, ignored when missing.")
	root.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "Enable debug logging.")

	root.AddCommand(newFetchCommand(global))
	root.AddCommand(newShowCommand(global))
	return root
}

// ExecuteContext runs the cli and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return ExitCode(err)
}

// ExitCode maps a run error onto the process exit code: 1 for configuration
// problems and empty results, 2 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var configErr *config.ConfigError
	if errors.As(err, &configErr) || errors.Is(err, leaderboard.ErrNoData) {
		return 1
	}
	return 2
}
