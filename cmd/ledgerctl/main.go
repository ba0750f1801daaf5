// Command ledgerctl is the operator tool for the stock ledger: schema
// migration, demo data, consistency checks, audit history and a live event
// viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockledger/internal/app"
	"stockledger/internal/config"
	appctx "stockledger/internal/core/context"
	"stockledger/pkg/logger"
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate a stockledger deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(migrateCmd, seedCmd, verifyCmd, historyCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

// env is what every subcommand starts from.
type env struct {
	cfg *config.Config
	log *logger.Logger
	ctx context.Context
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	// One trace per invocation so its log lines and audit rows correlate.
	ctx := appctx.WithTrace(cmd.Context(), appctx.NewTraceContext(cmd.Context(), ""))
	ctx = logger.WithLogger(ctx, log)
	return &env{cfg: cfg, log: log.WithContext(ctx), ctx: ctx}, nil
}

// openStore opens the configured ledger store; requirePostgres rejects the
// memory store for commands that only make sense against a database.
func (e *env) openStore(requirePostgres bool) (*app.Store, error) {
	if requirePostgres && e.cfg.Database.Store != config.StorePostgres {
		return nil, fmt.Errorf("this command needs the postgres store (set DATABASE_URL)")
	}
	return app.OpenStore(e.ctx, e.cfg, e.log)
}
