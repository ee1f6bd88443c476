package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model>...",
		Short: "Load models in parallel and print their statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine()
			if err != nil {
				return err
			}
			defer e.Shutdown()

			results, err := e.LoadModels(cmd.Context(), args)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintln(cmd.OutOrStdout(), renderError(r.Path, r.Err))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderMetadata(&r.Model.Metadata))
				r.Model.Dispose()
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return errors.Errorf("%d of %d models failed to load", failed, len(results))
			}
			return nil
		},
	}
}
