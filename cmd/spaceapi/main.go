// Command spaceapi explores the SpaceAPI directory: it lists spaces, fetches and
// normalizes their status documents, probes endpoint health, computes statistics
// and renders maps, charts and exports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spaceapi: %v\n", err)
		os.Exit(1)
	}
}
