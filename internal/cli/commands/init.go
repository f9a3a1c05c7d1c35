package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterConfig = `# melport configuration
#
# Maya must have a command port open, e.g. from the script editor:
#   commandPort -name ":7001" -sourceType "mel";
# Optionally a second port with echo output for script-editor messages:
#   commandPort -name ":7002" -sourceType "mel" -echoOutput;

address: "127.0.0.1:7001"
# echo_address: "127.0.0.1:7002"

dial_timeout: 5s
exec_timeout: 30s

log_level: warn
log_format: text
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter melport.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			const path = "melport.yaml"
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
