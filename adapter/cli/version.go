package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibeos/vibecore/internal/shared/infrastructure/database"
	"github.com/vibeos/vibecore/pkg/config"
)

var (
	// Version is set during build
	Version = "dev"
	// Commit is set during build
	Commit = "none"
	// BuildDate is set during build
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and resolved data locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("vibecore %s\n", Version)
		fmt.Printf("  commit: %s\n", Commit)
		fmt.Printf("  built:  %s\n", BuildDate)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("  task db:  %s (%s)\n", cfg.TaskDBURL, database.DetectDriver(cfg.TaskDBURL))
		fmt.Printf("  calendar: %s\n", cfg.CalendarDBPath)
		fmt.Printf("  inputs:   %s\n", cfg.InputsDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
