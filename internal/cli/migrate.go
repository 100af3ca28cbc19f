package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/attendance-sync-service/internal/bootstrap"
	"github.com/PratikDhanave/attendance-sync-service/internal/lock"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every missing source record into the sink",
	Long: `Pages through the source in batches, skips records whose (emp_id, time_stamp)
is already in the sink and inserts the rest. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
			summary, err := app.Runner.MigrateAll(ctx)
			if errors.Is(err, lock.ErrLocked) {
				return errors.New("another migration is in progress")
			}
			if summary != nil {
				if perr := printJSON(cmd.OutOrStdout(), summary); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d records failed; run 'attsync retry'", summary.Failed)
			}
			return nil
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Insert source records that are still missing from the sink",
	Long: `Loads every source record and every sink key, inserts the difference in
batches and falls back to single-record inserts for batches that fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
			summary, err := app.Runner.Retry(ctx)
			if errors.Is(err, lock.ErrLocked) {
				return errors.New("another migration is in progress")
			}
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d records could not be inserted", summary.Failed, summary.Candidates)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare source and sink totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
			stats, err := app.Reporter.Report(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.MigrationStatus{MigrationStats: *stats, Run: app.Runner.State()})
		})
	},
}
