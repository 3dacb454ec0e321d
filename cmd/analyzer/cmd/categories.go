package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoriesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the architecture categories found in the booking files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), a.settings, a.logger)
			if err != nil {
				return err
			}

			for _, c := range s.analyzer.ListCategories() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
