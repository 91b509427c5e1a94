package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkingovr/toolbridge/internal/audit"
	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/provider"
	"github.com/tkingovr/toolbridge/internal/provider/anthropic"
	"github.com/tkingovr/toolbridge/internal/provider/openai"
	"github.com/tkingovr/toolbridge/internal/provider/openrouter"
	"github.com/tkingovr/toolbridge/internal/toolexec"
)

var (
	completeProvider string
	completeSystem   string
	completeTools    bool
)

var completeCmd = &cobra.Command{
	Use:   "complete [flags] <prompt>",
	Short: "Send one prompt to a configured provider",
	Long: `Send a single user message to an LLM provider from the config file and
print the normalized reply, token usage and cost. The completion is recorded
in the ledger. With --tools the configured command tools are offered to the
model; requested tool calls are printed, not executed.`,
	Example: `  toolbridge complete -c toolbridge.yaml "Summarize RFC 7159 in one line"
  toolbridge complete -c toolbridge.yaml --provider claude --tools "echo hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().StringVarP(&completeProvider, "provider", "p", "", "provider name (default: first configured)")
	completeCmd.Flags().StringVar(&completeSystem, "system", "", "system prompt")
	completeCmd.Flags().BoolVar(&completeTools, "tools", false, "offer the configured tools to the model")
	rootCmd.AddCommand(completeCmd)
}

func newFactory() *provider.Factory {
	f := provider.NewFactory()
	openai.Register(f)
	openrouter.Register(f)
	anthropic.Register(f)
	return f
}

type completionOutput struct {
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Text         string           `json:"text,omitempty"`
	ToolCalls    []toolCallOutput `json:"tool_calls,omitempty"`
	InputTokens  *int64           `json:"input_tokens,omitempty"`
	OutputTokens *int64           `json:"output_tokens,omitempty"`
	TotalTokens  *int64           `json:"total_tokens,omitempty"`
	Cost         string           `json:"cost,omitempty"`
}

type toolCallOutput struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func runComplete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pc, err := cfg.Provider(completeProvider)
	if err != nil {
		return err
	}
	table, err := cfg.PricingTable()
	if err != nil {
		return err
	}
	pcfg, err := pc.Resolve(table)
	if err != nil {
		return err
	}
	pcfg.Logger = logger

	p, err := newFactory().New(pc.Kind, pcfg)
	if err != nil {
		return fmt.Errorf("creating provider %q: %w", pc.Name, err)
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()
	p = audit.RecordCompletions(p, auditStore, logger)

	var tools []message.Tool
	if completeTools {
		cmds, err := cfg.Commands()
		if err != nil {
			return err
		}
		runner, err := toolexec.NewRunner(cmds, logger)
		if err != nil {
			return err
		}
		for _, td := range runner.Tools() {
			tools = append(tools, message.Tool{
				Name:        td.Name,
				Description: td.Description,
				InputSchema: td.InputSchema,
			})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msg := message.User().WithText(strings.Join(args, " "))
	reply, pu, err := p.Complete(ctx, completeSystem, []message.Message{msg}, tools)
	if err != nil {
		return err
	}

	out := completionOutput{
		Provider:     p.Name(),
		Model:        pu.Model,
		Text:         reply.Text(),
		InputTokens:  pu.Usage.InputTokens,
		OutputTokens: pu.Usage.OutputTokens,
		TotalTokens:  pu.Usage.TotalTokens,
	}
	if pu.Cost != nil {
		out.Cost = pu.Cost.String()
	}
	for _, tr := range reply.ToolRequests() {
		tc := toolCallOutput{ID: tr.ID, Name: tr.Call.Name, Arguments: tr.Call.Arguments}
		if tr.Err != nil {
			tc.Error = tr.Err.Error()
		}
		out.ToolCalls = append(out.ToolCalls, tc)
	}
	return printJSON(out)
}
