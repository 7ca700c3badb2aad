package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xynqdb/xynq/internal/buildinfo"
)

// newVersionCommand mirrors sa6mwa-lockd's cmd/lockd/version_cmd.go.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the xynqd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", buildinfo.Module(), buildinfo.Version())
			return err
		},
	}
}
