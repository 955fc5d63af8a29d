package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Run the search provider chain and print the filtered results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := a.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, r := range results {
				fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
			}
			return nil
		},
	}
}
