package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/melport/melport/internal/config"
)

// NewConfigCommand creates the config command, which prints the effective
// configuration after all layers are merged.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetConfig(cmd.Context())
			if cfg == nil {
				return fmt.Errorf("no configuration loaded")
			}

			out := map[string]any{
				"address":      cfg.Address,
				"echo_address": cfg.EchoAddress,
				"dial_timeout": cfg.DialTimeout.String(),
				"exec_timeout": cfg.ExecTimeout.String(),
				"log_level":    cfg.LogLevel,
				"log_format":   cfg.LogFormat,
				"history_file": cfg.HistoryFile,
			}
			data, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
