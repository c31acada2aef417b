// Package config loads tool configuration from, in rising precedence,
// built-in defaults, a wheelhouse.yaml file, WHEELHOUSE_ environment
// variables, and command-line flags.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in a command context.
type loggerKey struct{}

var (
	configFileUsed string
	currentConfig  *Config
)

// sourceFlags maps flat flag names onto keys nested under source.
var sourceFlags = map[string]string{
	"type":     "source.type",
	"host":     "source.host",
	"port":     "source.port",
	"user":     "source.user",
	"password": "source.password",
	"database": "source.database",
	"sslmode":  "source.sslmode",
	"path":     "source.path",
	// --sample-file arrives as sample.file after the kebab transform
	"sample.file": "source.sample_file",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > wheelhouse.yaml > wheelhouse.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"wheelhouse.yaml", "wheelhouse.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"output":      DefaultOutput,
		"concurrency": DefaultConcurrency,
		"verbose":     false,
		"serve.addr":  DefaultServeAddr,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (WHEELHOUSE_ prefix)
	// Transform: WHEELHOUSE_SOURCE_HOST -> source.host. Only the first
	// underscore nests; the rest belong to the key (source.sample_file).
	if err := k.Load(env.Provider("WHEELHOUSE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "WHEELHOUSE_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", ".")
			if mapped, ok := sourceFlags[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Expand ${VAR} in credentials so they never need to live in the file
	cfg.Source.User = expandEnvVars(cfg.Source.User)
	cfg.Source.Password = expandEnvVars(cfg.Source.Password)
	cfg.Source.Host = expandEnvVars(cfg.Source.Host)

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last Load call.
func GetCurrentConfig() *Config {
	if currentConfig != nil {
		return currentConfig
	}
	return &Config{
		Output:      DefaultOutput,
		Concurrency: DefaultConcurrency,
		Serve:       ServeConfig{Addr: DefaultServeAddr},
	}
}

// LoggerKey returns the context key used for storing the logger. This lets
// the commands package retrieve the logger from context without an import
// cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}
