package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
)

func newBenchCommand(a *app) *cobra.Command {
	var (
		tier     string
		duration time.Duration
		snapshot string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a renderer benchmark session",
		Long: `Generates the synthetic scene of a tier, renders it for the given duration and
prints the aggregated metrics, the score and the grade. The result is appended to
the benchmark history. Ctrl+C ends the session early; its result is still kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine()
			if err != nil {
				return err
			}
			defer e.Shutdown()

			out := cmd.ErrOrStderr()
			e.Events().Register(core.EVENT_CODE_BENCHMARK_PROGRESS, cmd, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
				fmt.Fprintln(out, faintStyle.Render(fmt.Sprintf("%5.1f%%  %6.1f fps  %s samples",
					data.Data.F64[0], data.Data.F64[1], core.FormatNumber(data.Data.I64[0]))))
				return false
			})

			result, err := e.RunBenchmark(cmd.Context(), tier, duration)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResult(result))
			if snapshot != "" {
				return writeSnapshot(e, snapshot)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&tier, "tier", "t", "", "tier to run: basic, medium or stress (default from config)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "session length, e.g. 10s (default from config)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "write the last rendered frame to this PNG file")
	return cmd
}

func writeSnapshot(e *engine.Engine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create snapshot")
	}
	if err := e.Snapshot(f); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to write snapshot")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to write snapshot")
	}
	core.LogInfo("snapshot written to '%s'", path)
	return nil
}
