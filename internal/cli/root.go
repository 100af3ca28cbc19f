// Package cli implements the attsync operator command.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/bootstrap"
	"github.com/PratikDhanave/attendance-sync-service/internal/config"
	"github.com/PratikDhanave/attendance-sync-service/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "attsync",
	Short: "Attendance migration tool",
	Long: `attsync copies attendance records from the local SQLite database into the
cloud table store and reports how far the two have converged.

Configuration comes from an optional config file, a .env file and the
environment (SINK_URL, SOURCE_PATH, MIGRATION_BATCH_SIZE, ...).`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context, which stops a migration at the next batch boundary.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd, retryCmd, statusCmd, checkSourceCmd, seedCmd, purgeCmd)
}

// loadConfig reads configuration; validate is false for commands that
// only touch the source.
func loadConfig(cmd *cobra.Command, validate bool) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if validate {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.Read(cfgFile)
	}
	if err != nil {
		return config.Config{}, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, "console")
}

// withApp loads configuration, wires the application and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.Close(closeCtx)
	}()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
