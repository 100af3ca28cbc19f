package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/attendance-sync-service/internal/source"
)

var (
	seedCount     int
	seedEmployees int
	seedValue     int64
	seedDay       string
)

var checkSourceCmd = &cobra.Command{
	Use:   "check-source",
	Short: "Print the source record count and the first rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}

		s, err := source.NewSQLiteOpener(cfg.Source.Path, cfg.Source.Table, nil).OpenSQLite(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.Count(cmd.Context())
		if err != nil {
			return fmt.Errorf("count %s: %w", cfg.Source.Table, err)
		}
		rows, err := s.FetchPage(cmd.Context(), 5, 0)
		if err != nil {
			return fmt.Errorf("read %s: %w", cfg.Source.Table, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total records in %s: %d\n", cfg.Source.Table, n)
		for _, r := range rows {
			fmt.Fprintf(out, "  id=%d emp_id=%d emp_name=%q time_stamp=%s\n", r.ID, r.EmpID, r.EmpName, r.TimeStamp)
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Append generated attendance rows to the source",
	Long: `Generates realistic clock-in rows for local development and testing.
The same --seed produces the same rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}

		day := time.Now()
		if seedDay != "" {
			day, err = time.Parse("2006-01-02", seedDay)
			if err != nil {
				return fmt.Errorf("--day must be YYYY-MM-DD: %w", err)
			}
		}

		s, err := source.NewSQLiteOpener(cfg.Source.Path, cfg.Source.Table, nil).OpenSQLite(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := source.Seed(cmd.Context(), s, seedValue, seedCount, seedEmployees, day)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d records into %s\n", n, cfg.Source.Path)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of rows to generate")
	seedCmd.Flags().IntVar(&seedEmployees, "employees", 10, "number of distinct employees")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 1, "random seed")
	seedCmd.Flags().StringVar(&seedDay, "day", "", "day to generate punches for (YYYY-MM-DD, default today)")
}
