package source

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
	"github.com/wheelhouse-labs/wheelhouse/internal/extract"
)

// SnapshotOptions tune a snapshot run.
type SnapshotOptions struct {
	// Concurrency bounds the parallel DDL/column fetches. Zero means a
	// small default.
	Concurrency int
	Logger      *slog.Logger
}

const defaultConcurrency = 8

// Snapshot lists every object of the source and enriches each with its DDL
// and columns, returning a closed registry ready for lineage computation.
// Session-scoped objects are never registered. Enrichment runs in parallel
// per object: each fetch mutates only its own registry entry, after all
// registrations are done. A failed fetch leaves the entry bare and the run
// continues; only listing failures and context cancellation abort.
func Snapshot(ctx context.Context, src Source, opts SnapshotOptions) (*catalog.Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	listed, err := src.ListObjects(ctx)
	if err != nil {
		return nil, err
	}

	reg := catalog.NewRegistry()
	var kept []ListedObject
	for _, obj := range listed {
		if extract.IsTemporary(obj.Path.Name) {
			continue
		}
		reg.Register(obj.Path, obj.Kind)
		kept = append(kept, obj)
	}
	logger.Info("catalog listed", "objects", reg.Len(), "skipped", len(listed)-len(kept))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, obj := range kept {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			ddl, err := src.FetchDDL(gctx, obj)
			if err != nil {
				logger.Warn("ddl fetch failed", "object", obj.Path.String(), "error", err)
			} else {
				reg.SetDDL(obj.Path, ddl)
			}

			// procedures have no column listing
			if obj.Kind == catalog.KindProcedure {
				return nil
			}
			columns, err := src.FetchColumns(gctx, obj)
			if err != nil {
				logger.Warn("column fetch failed", "object", obj.Path.String(), "error", err)
				return nil
			}
			reg.SetColumns(obj.Path, columns)
			logger.Debug("object enriched", "object", obj.Path.String(), "columns", len(columns))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reg, nil
}
