package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/policy"
)

var (
	checkTool string
	checkArgs string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run a policy check for a tool call",
	Long: `Check what verdict a tools/call would receive without running the server.
Useful for testing and debugging policy rules.`,
	Example: `  toolbridge check -c toolbridge.yaml --tool read_file --args '{"path":"/etc/passwd"}'`,
	Args:    cobra.NoArgs,
	RunE:    runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkTool, "tool", "", "tool name")
	checkCmd.Flags().StringVar(&checkArgs, "args", "", "JSON arguments")
	_ = checkCmd.MarkFlagRequired("tool")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("--config/-c is required for check command")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	if engine == nil {
		return fmt.Errorf("%s has no policy section", cfgFile)
	}

	input := &policy.EvalInput{Tool: checkTool}
	if checkArgs != "" {
		if !json.Valid([]byte(checkArgs)) {
			return fmt.Errorf("--args is not valid JSON")
		}
		input.Arguments = json.RawMessage(checkArgs)
	}

	result, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		return fmt.Errorf("evaluation error: %w", err)
	}

	return printJSON(api.CheckResponse{
		Verdict: result.Verdict,
		Rule:    result.Rule,
		Message: result.Message,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
