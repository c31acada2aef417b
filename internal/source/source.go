// Package source defines the warehouse connectivity contract feeding the
// catalog registry: listing objects, fetching their DDL and columns.
// Concrete drivers live in internal/sources/ subdirectories and register
// themselves by name in their init() functions.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
)

// ListedObject is one row of a catalog listing.
type ListedObject struct {
	Path catalog.ObjectPath
	Kind catalog.ObjectKind
}

// Config holds connection settings for a source.
type Config struct {
	Type     string `koanf:"type"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	SSLMode  string `koanf:"sslmode"`
	// Path is the database file for embedded engines.
	Path string `koanf:"path"`
	// SampleFile names a SQL template run per object to collect one sample
	// value per column. "{object}" expands to schema.name. Empty disables
	// sampling.
	SampleFile string `koanf:"sample_file"`
}

// Source is the interface every warehouse driver implements. All blocking
// operations honor the context.
type Source interface {
	// Connect establishes connectivity using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close releases all connections.
	Close() error

	// ListObjects returns every table, view, and procedure visible in the
	// warehouse catalogs.
	ListObjects(ctx context.Context) ([]ListedObject, error)

	// FetchDDL returns the definition text of one object.
	FetchDDL(ctx context.Context, obj ListedObject) (string, error)

	// FetchColumns returns the ordered column list of one object.
	FetchColumns(ctx context.Context, obj ListedObject) ([]catalog.Feature, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Source)
)

// Register adds a source factory to the registry.
// Called by driver implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a source factory by name.
func Get(name string) (func(*slog.Logger) Source, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates a source instance based on config type. A nil logger means
// the driver logs nowhere.
func New(cfg Config, logger *slog.Logger) (Source, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("source type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownSourceError{
			Type:      cfg.Type,
			Available: List(),
		}
	}
	return factory(logger), nil
}

// List returns all registered source names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownSourceError is returned when an unknown source type is requested.
type UnknownSourceError struct {
	Type      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source type %q\nAvailable sources: %v\nHint: check source.type in wheelhouse.yaml", e.Type, e.Available)
}
