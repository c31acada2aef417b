// Package commands implements the wheelhouse subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
	"github.com/wheelhouse-labs/wheelhouse/internal/cli/config"
	"github.com/wheelhouse-labs/wheelhouse/internal/source"
)

// openSource creates and connects the configured warehouse source. The
// caller owns the returned source and must close it.
func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (source.Source, error) {
	src, err := source.New(cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	if err := src.Connect(ctx, cfg.Source); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Source.Type, err)
	}
	return src, nil
}

// takeSnapshot connects to the configured source and returns a fully
// enriched registry.
func takeSnapshot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalog.Registry, error) {
	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	return source.Snapshot(ctx, src, source.SnapshotOptions{
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	})
}
