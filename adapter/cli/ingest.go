package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load new backlog files from the inputs directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Driver.Ingest(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("ingested %d new task(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
