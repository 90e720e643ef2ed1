package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toppings/giveandtake/internal/config"
	"github.com/toppings/giveandtake/internal/fuzzy"
	"github.com/toppings/giveandtake/internal/logging"
	"github.com/toppings/giveandtake/internal/roster"
)

var (
	jsonOutput bool
	logLevel   string
	logFormat  string
	rosterFile string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "giveandtake",
	Short: "Referee for the give-and-take scoreboard game",
	Long: `giveandtake checks every scoreboard posted to a chat channel against the
round before it: one item up by one, one item down by one, same total.
Items that reach zero are recorded in a pinned kill list.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			config.Set(config.KeyLogLevel, logLevel)
		}
		if cmd.Flags().Changed("log-format") {
			config.Set(config.KeyLogFormat, logFormat)
		}
		if cmd.Flags().Changed("roster") {
			config.Set(config.KeyRosterFile, rosterFile)
		}
		l, err := logging.New(config.GetString(config.KeyLogLevel), config.GetString(config.KeyLogFormat))
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (or GT_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (or GT_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&rosterFile, "roster", "", "YAML roster file (or GT_ROSTER_FILE, default: built-in toppings)")
}

// loadRoster returns the configured roster: the roster file when set,
// otherwise the built-in list with the configured allocation.
func loadRoster() (*roster.Roster, error) {
	if path := config.GetString(config.KeyRosterFile); path != "" {
		snap, err := roster.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return roster.New(snap.Items, snap.Allocation), nil
	}
	allocation := config.GetInt(config.KeyAllocation)
	if allocation <= 0 {
		allocation = roster.DefaultAllocation
	}
	return roster.New(roster.DefaultItems, allocation), nil
}

func newResolver() fuzzy.NameResolver {
	return fuzzy.NewLevenshtein(config.GetInt(config.KeyFuzzyMinScore))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := exitCode(err); ok {
			os.Exit(code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
