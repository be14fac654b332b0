package cli

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Fill the lookahead window with an optimized schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		return app.Driver.Plan(ctx)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
