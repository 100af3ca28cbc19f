package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/attendance-sync-service/internal/bootstrap"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

var (
	purgeEmpID     int64
	purgeStartDate string
	purgeEndDate   string
	purgeYes       bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete records from the sink",
	Long: `Shows how many sink records match the filters. Nothing is deleted unless
--yes is given. Without filters every sink record matches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
			q := store.Query{From: purgeStartDate, To: purgeEndDate}
			if cmd.Flags().Changed("emp-id") {
				q.EmpID = &purgeEmpID
			}

			preview, err := app.Purge.Preview(ctx, q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d records match\n", preview.PreviewCount)
			if !purgeYes {
				fmt.Fprintln(out, "Re-run with --yes to delete them")
				return nil
			}

			deleted, _, err := app.Runner.Purge(ctx, app.Purge, preview.Token, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared %d records\n", deleted)
			return nil
		})
	},
}

func init() {
	purgeCmd.Flags().Int64Var(&purgeEmpID, "emp-id", 0, "only records of this employee")
	purgeCmd.Flags().StringVar(&purgeStartDate, "start-date", "", "only records with time_stamp >= this value")
	purgeCmd.Flags().StringVar(&purgeEndDate, "end-date", "", "only records with time_stamp <= this value")
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "delete without asking again")
}
