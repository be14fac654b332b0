package cli

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vibeos/vibecore/adapter/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduling engine: HTTP API, inputs watcher, pipeline worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		app.Driver.Start(ctx)
		app.Driver.Trigger("startup")

		watcher := pipelineWatcher(app)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				app.Logger.Error("inputs watcher stopped", "error", err)
			}
		}()

		srvCfg := api.DefaultServerConfig()
		srvCfg.Addr = app.Config.HTTPAddr
		server := api.NewServer(srvCfg, app.Driver, app.Logger)

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := shutdownContext()
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				app.Logger.Error("server shutdown failed", "error", err)
			}
		}()

		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		app.Driver.Wait()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
