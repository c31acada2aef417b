package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wheelhouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultServeAddr, cfg.Serve.Addr)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
source:
  type: redshift
  host: cluster.example.com
  port: 5439
  database: analytics
output: lineage.json
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "redshift", cfg.Source.Type)
	assert.Equal(t, "cluster.example.com", cfg.Source.Host)
	assert.Equal(t, 5439, cfg.Source.Port)
	assert.Equal(t, "lineage.json", cfg.Output)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
source:
  type: redshift
  host: from-file
`)
	t.Setenv("WHEELHOUSE_SOURCE_HOST", "from-env")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Source.Host)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("WHEELHOUSE_SOURCE_DATABASE", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database", "", "")
	require.NoError(t, flags.Parse([]string{"--database", "from-flag"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Source.Database)
}

func TestLoad_ExpandsCredentialEnvVars(t *testing.T) {
	path := writeConfig(t, `
source:
  user: loader
  password: ${WHEELHOUSE_TEST_SECRET}
`)
	t.Setenv("WHEELHOUSE_TEST_SECRET", "hunter2")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Source.Password)
}
