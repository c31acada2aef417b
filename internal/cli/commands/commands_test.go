package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelhouse-labs/wheelhouse/internal/wheel"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func writeArtifact(t *testing.T, dir string, nodes []wheel.Node) string {
	t.Helper()
	data, err := json.Marshal(nodes)
	require.NoError(t, err)
	return writeFile(t, dir, "wheel.json", string(data))
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Wheelhouse v1.2.3")
}

func TestDepsCommand(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, []wheel.Node{
		{Name: "db.sc.orders", Type: "TABLE"},
		{Name: "db.sc.daily", Type: "VIEW"},
	})
	sqlFile := writeFile(t, dir, "build.sql",
		`CREATE VIEW db.sc.daily AS SELECT * FROM db.sc.orders JOIN db.sc.unknown ON 1=1;`)

	cmd := NewDepsCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--input", artifact, "--output", "json", sqlFile})

	require.NoError(t, cmd.Execute())

	var results []fileDeps
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, []string{"db.sc.orders"}, results[0].Reads)
	assert.Equal(t, []string{"db.sc.daily"}, results[0].Writes)
}

func TestDepsCommand_UnreadableFileReported(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, []wheel.Node{{Name: "db.sc.t", Type: "TABLE"}})

	cmd := NewDepsCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--input", artifact, filepath.Join(dir, "missing.sql")})

	assert.Error(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "missing.sql")
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	sqlFile := writeFile(t, dir, "query.sql", `SELECT u.id FROM sc.users u`)

	cmd := NewParseCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{sqlFile})

	require.NoError(t, cmd.Execute())

	var results map[string]map[string]map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Contains(t, results, sqlFile)
	assert.Contains(t, results[sqlFile]["sc"], "users")
}

func TestServeRoutes(t *testing.T) {
	w := wheel.FromNodes([]wheel.Node{
		{Name: "db.sc.a", Type: "TABLE", Incoming: []string{}, Outgoing: []string{"db.sc.b"}},
		{Name: "db.sc.b", Type: "VIEW", Incoming: []string{"db.sc.a"}, Outgoing: []string{}},
	})

	r := chi.NewMux()
	setupRoutes(r, w)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/wheel")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var nodes []wheel.Node
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&nodes))
	assert.Len(t, nodes, 2)

	resp, err = http.Get(srv.URL + "/api/objects/db.sc.b/upstream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var up struct {
		Name     string   `json:"name"`
		Upstream []string `json:"upstream"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	assert.Equal(t, []string{"db.sc.a"}, up.Upstream)

	resp, err = http.Get(srv.URL + "/api/objects/db.sc.nope")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
