// Package main is the wheelhouse entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wheelhouse-labs/wheelhouse/internal/cli"

	// warehouse drivers register themselves on import
	_ "github.com/wheelhouse-labs/wheelhouse/internal/sources/duckdb"
	_ "github.com/wheelhouse-labs/wheelhouse/internal/sources/redshift"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
