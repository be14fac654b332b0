package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibeos/vibecore/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full pipeline pass: reconcile, ingest, plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		return app.Driver.Run(ctx, "cli")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// pipelineWatcher builds the inputs watcher for an app.
func pipelineWatcher(app *App) *pipeline.Watcher {
	return pipeline.NewWatcher(app.Driver, app.Config.InputsDir, app.Config.WatcherDebounce, app.Logger)
}

// shutdownContext bounds graceful HTTP shutdown.
func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
