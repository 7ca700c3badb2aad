package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCheckCommand loads and validates a config without serving
// anything, the CLI-layer analog of the original's startup-time
// config enumeration - useful in a deploy pipeline to catch a typo'd
// key or malformed value before restarting the real process.
func newCheckCommand() *cobra.Command {
	var configPath string
	var sets []string
	var listens []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a config file without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, explicit := resolveConfigPath(configPath)
			cfg, err := loadConfig(path, explicit, sets, listens)
			if err != nil {
				return err
			}
			cfg.Enumerate(func(key, value string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file (default: $XYNQD_CONFIG or ./xynqdb.conf)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a config key, as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&listens, "listen", nil, "override the tcp.bind list with this address (repeatable)")
	return cmd
}
