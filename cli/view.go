package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newViewCommand(a *app) *cobra.Command {
	var (
		frames   int
		watch    string
		snapshot string
	)
	cmd := &cobra.Command{
		Use:   "view <model>",
		Short: "Load a model and render it with the headless viewer",
		Long: `Loads a glTF, GLB, OBJ or FBX file, scales and centres it, and renders it while
it turns. With --watch the model is reloaded whenever its file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine()
			if err != nil {
				return err
			}
			defer e.Shutdown()

			model, err := e.LoadModel(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMetadata(&model.Metadata))

			if watch != "" {
				if err := e.Watch(watch); err != nil {
					return err
				}
			}
			stats, err := e.RunViewer(cmd.Context(), frames)
			if err != nil {
				return err
			}
			info := e.RenderInfo()
			fmt.Fprintln(cmd.OutOrStdout(), row("Frames", fmt.Sprintf("%d", stats.Frames)))
			fmt.Fprintln(cmd.OutOrStdout(), row("Frame time", fmt.Sprintf("%.2f ms", stats.FrameTimeMs)))
			fmt.Fprintln(cmd.OutOrStdout(), row("Draw calls", fmt.Sprintf("%d", info.DrawCalls)))
			if snapshot != "" {
				return writeSnapshot(e, snapshot)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&frames, "frames", "n", 300, "frames to render, 0 renders until interrupted")
	cmd.Flags().StringVarP(&watch, "watch", "w", "", "directory to watch for model changes")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "write the last rendered frame to this PNG file")
	return cmd
}
