package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wheelhouse-labs/wheelhouse/internal/cli/config"
	"github.com/wheelhouse-labs/wheelhouse/internal/wheel"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		inputPath string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an exported lineage graph over HTTP",
		Long: `Load a previously exported artifact and serve it as a small JSON API:

  GET /api/wheel                           the full graph
  GET /api/objects/{name}                  one object record
  GET /api/objects/{name}/upstream         every transitive ancestor
  GET /api/objects/{name}/downstream       every transitive descendant`,
		Example: `  wheelhouse serve --input wheel.json --addr :8089`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, inputPath, addr)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "wheel.json", "Artifact to serve")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, inputPath, addr string) error {
	cfg := config.GetCurrentConfig()
	logger := config.GetLogger(cmd.Context())

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	var nodes []wheel.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return fmt.Errorf("failed to decode artifact %s: %w", inputPath, err)
	}
	w := wheel.FromNodes(nodes)

	if addr == "" {
		addr = cfg.Serve.Addr
	}
	logger.Info("serving lineage graph", "addr", addr, "objects", len(nodes))

	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	setupRoutes(r, w)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return cmd.Context()
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egctx := errgroup.WithContext(cmd.Context())
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// setupRoutes mounts the lineage API on the router.
func setupRoutes(r chi.Router, w *wheel.Wheel) {
	r.Get("/api/wheel", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, w.Nodes)
	})

	r.Route("/api/objects/{name}", func(r chi.Router) {
		r.Get("/", func(rw http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			node, ok := w.Node(name)
			if !ok {
				writeJSON(rw, http.StatusNotFound, map[string]string{"error": "unknown object: " + name})
				return
			}
			writeJSON(rw, http.StatusOK, node)
		})

		r.Get("/upstream", func(rw http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			if _, ok := w.Node(name); !ok {
				writeJSON(rw, http.StatusNotFound, map[string]string{"error": "unknown object: " + name})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]interface{}{
				"name":     name,
				"upstream": w.Upstream(name),
			})
		})

		r.Get("/downstream", func(rw http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			if _, ok := w.Node(name); !ok {
				writeJSON(rw, http.StatusNotFound, map[string]string{"error": "unknown object: " + name})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]interface{}{
				"name":       name,
				"downstream": w.Downstream(name),
			})
		})
	})
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
