package config

import "github.com/wheelhouse-labs/wheelhouse/internal/source"

// Defaults applied before any config file, env var, or flag.
const (
	DefaultOutput      = "wheel.json"
	DefaultConcurrency = 8
	DefaultServeAddr   = ":8089"
)

// Config is the resolved tool configuration.
type Config struct {
	// Source holds warehouse connection settings.
	Source source.Config `koanf:"source"`

	// Output is the path the snapshot artifact is written to. "-" means
	// stdout.
	Output string `koanf:"output"`

	// Concurrency bounds parallel metadata fetches during a snapshot.
	Concurrency int `koanf:"concurrency"`

	Verbose bool `koanf:"verbose"`

	Serve ServeConfig `koanf:"serve"`
}

// ServeConfig holds settings for the HTTP server.
type ServeConfig struct {
	Addr string `koanf:"addr"`
}
