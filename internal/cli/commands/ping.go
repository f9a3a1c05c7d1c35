package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/melport/melport/internal/config"
)

// NewPingCommand creates the ping command.
func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the command port is responding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			cfg := config.GetConfig(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s is responding (%s)\n",
				cfg.Address, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
