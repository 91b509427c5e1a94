package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkingovr/toolbridge/internal/config"
	"github.com/tkingovr/toolbridge/internal/policy"
)

var (
	cfgFile string
	verbose bool
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "toolbridge",
	Short: "toolbridge: MCP tool server and LLM completion ledger",
	Long: `toolbridge serves locally configured command tools over the Model Context
Protocol (JSON-RPC on stdio or HTTP), guards each tools/call with policy,
secret scanning and rate limits, and records tool calls and LLM completions
with their token usage and cost in a JSONL ledger.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine builds the policy engine, or returns nil when the config carries
// no policy section.
func newEngine(cfg *config.Config) (policy.Engine, error) {
	if cfg.Policy == nil {
		return nil, nil
	}
	engine, err := policy.New(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("creating policy engine: %w", err)
	}
	return engine, nil
}
