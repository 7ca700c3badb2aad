// Command xynqd is the xynq database server: it loads a config file,
// wires up the task runtime, storage and Slang environment, and
// serves the wire protocol over TCP until asked to stop. Grounded on
// original_source/source/main/main.cc's overall wiring order, with
// the command tree itself shaped after sa6mwa-lockd's cmd/lockd
// package.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	ctx := withSignalCancel(context.Background())
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
