package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fold user calendar edits back into the task backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Driver.Reconcile(ctx)
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Println("calendar store unavailable, nothing reconciled")
			return nil
		}
		fmt.Printf("reconciled: %d missed, %d moved\n", res.Missed, res.Moved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
