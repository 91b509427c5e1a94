package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/audit"
)

var (
	costRecords bool
	costSince   time.Duration
	costModel   string
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Summarize token usage and cost from the ledger",
	Long: `Print ledger totals: tool calls, denials, completions, token counts and the
summed cost of every priced completion. With --records the individual
completion records are printed instead.`,
	Example: `  toolbridge cost -c toolbridge.yaml
  toolbridge cost -c toolbridge.yaml --records --since 24h --model gpt-4o`,
	Args: cobra.NoArgs,
	RunE: runCost,
}

func init() {
	costCmd.Flags().BoolVar(&costRecords, "records", false, "print completion records instead of totals")
	costCmd.Flags().DurationVar(&costSince, "since", 0, "only records newer than this (with --records)")
	costCmd.Flags().StringVar(&costModel, "model", "", "only records for this model (with --records)")
	rootCmd.AddCommand(costCmd)
}

func runCost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if !costRecords {
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	}

	filter := api.QueryFilter{Kind: api.KindCompletion, Model: costModel}
	if costSince > 0 {
		filter.Since = time.Now().Add(-costSince)
	}
	records, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}
	if records == nil {
		records = []*api.AuditRecord{}
	}
	return printJSON(records)
}
