package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, buildDate, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "melport v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", buildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", gitCommit)
		},
	}
}
