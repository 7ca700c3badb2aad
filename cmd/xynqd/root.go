package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// configEnvVar is the fallback for --config, honored when the flag is
// left unset.
const configEnvVar = "XYNQD_CONFIG"

// defaultConfigPath mirrors main.cc's "./xynqdb.conf" default.
const defaultConfigPath = "./xynqdb.conf"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "xynqd",
		Short:         "xynqd is the xynq database server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// withSignalCancel cancels ctx on SIGINT/SIGTERM, mirroring
// sa6mwa-lockd's app.go helper of the same name.
func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}

// resolveConfigPath applies the --config flag, falling back to the
// XYNQD_CONFIG environment variable and finally the original's
// "./xynqdb.conf" default, mirroring main.cc's LoadConfig argument
// resolution. explicit reports whether the path came from the flag or
// the environment, rather than the bare default - loadConfig uses
// this to decide whether a missing file is an error.
func resolveConfigPath(flagValue string) (path string, explicit bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if v := os.Getenv(configEnvVar); v != "" {
		return v, true
	}
	return defaultConfigPath, false
}
