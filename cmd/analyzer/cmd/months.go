package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMonthsCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "months",
		Short: "List the fiscal months found in the booking files",
		Long: `Months prints every valid fiscal month label present in either file,
newest first. Any of them can be passed to 'analyze --end-month'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), a.settings, a.logger)
			if err != nil {
				return err
			}

			months := s.analyzer.ListAvailableMonths()
			if len(months) == 0 {
				_, err := s.analyzer.DefaultEndMonth()
				return err
			}
			if limit > 0 && len(months) > limit {
				months = months[:limit]
			}
			for _, m := range months {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "print at most n months (0 prints all)")
	return cmd
}
