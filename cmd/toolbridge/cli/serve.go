package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/audit"
	"github.com/tkingovr/toolbridge/internal/dashboard"
	"github.com/tkingovr/toolbridge/internal/filter"
	"github.com/tkingovr/toolbridge/internal/policy"
	"github.com/tkingovr/toolbridge/internal/router"
	"github.com/tkingovr/toolbridge/internal/toolexec"
	httptransport "github.com/tkingovr/toolbridge/internal/transport/http"
	"github.com/tkingovr/toolbridge/internal/transport/stdio"
)

var (
	serveHTTP      bool
	serveDashboard bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured tools over MCP",
	Long: `Serve the tools from the config file as an MCP server. By default the
server speaks newline-delimited JSON-RPC on stdin/stdout; --http serves
JSON-RPC over HTTP POST on http_addr instead. --dashboard also starts the
web dashboard on dashboard_addr. SIGHUP reloads the policy.`,
	Example: `  toolbridge serve -c toolbridge.yaml
  toolbridge serve -c toolbridge.yaml --http --dashboard`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveHTTP, "http", false, "serve JSON-RPC over HTTP instead of stdio")
	serveCmd.Flags().BoolVar(&serveDashboard, "dashboard", false, "also start the web dashboard")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()

	cmds, err := cfg.Commands()
	if err != nil {
		return err
	}
	runner, err := toolexec.NewRunner(cmds, logger)
	if err != nil {
		return fmt.Errorf("creating tool runner: %w", err)
	}

	chainCfg := filter.ChainConfig{
		Engine:           engine,
		AuditStore:       auditStore,
		Logger:           logger,
		SecretScanner:    cfg.SecretScanner.Enabled,
		EntropyThreshold: cfg.SecretScanner.EntropyThreshold,
		RateLimit:        cfg.RateLimitConfig(),
	}

	info := api.Implementation{Name: cfg.Server.Name, Version: cfg.Server.Version}
	if info.Version == "" {
		info.Version = version
	}
	r := router.New(cfg.Capabilities(), info, runner, runner.Call,
		router.WithLogger(logger),
		router.WithCallChain(filter.BuildCallChain(chainCfg)),
		router.WithResultChain(filter.BuildResultChain(chainCfg)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel, engine)

	if serveDashboard {
		dash := dashboard.NewServer(cfg.DashboardAddr, auditStore, engine, logger)
		go func() {
			if err := dash.ListenAndServe(ctx); err != nil {
				logger.Error("dashboard error", "error", err)
			}
		}()
	}

	logger.Info("starting server",
		slog.String("name", info.Name),
		slog.Int("tools", len(cmds)),
		slog.Bool("http", serveHTTP),
		slog.String("ledger", cfg.LogDir),
	)

	if serveHTTP {
		return httptransport.NewServer(r, logger).ListenAndServe(ctx, cfg.HTTPAddr)
	}
	err = stdio.NewServer(r, os.Stdout, logger).Serve(ctx, os.Stdin)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

// handleSignals cancels on SIGINT/SIGTERM and reloads the policy on SIGHUP.
func handleSignals(ctx context.Context, cancel context.CancelFunc, engine policy.Engine) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig != syscall.SIGHUP {
				logger.Info("shutting down")
				cancel()
				return
			}
			if engine == nil {
				continue
			}
			if err := engine.Reload(ctx); err != nil {
				logger.Error("policy reload failed", "error", err)
				continue
			}
			logger.Info("policy reloaded")
		}
	}
}
