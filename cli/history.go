package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/prism/engine/history"
)

func newHistoryCommand(a *app) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the stored benchmark results",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			store := history.NewStore(a.config.History.Path, a.config.History.MaxEntries)
			if clearAll {
				store.Clear()
				fmt.Fprintln(cmd.OutOrStdout(), faintStyle.Render("Benchmark history cleared."))
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(store.List()))
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove every stored result")
	return cmd
}
