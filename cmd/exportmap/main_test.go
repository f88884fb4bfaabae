package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exportmap/pkg/config"
	"exportmap/pkg/store"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := strings.NewReplacer("DIR", filepath.ToSlash(dir)).Replace(`
server:
    address: localhost:0
    static_dir: ""
log:
    server:
        path: "DIR/logs/server.log"
        level: "debug"
    requests:
        path: "DIR/logs/requests.log"
        level: "info"
    events:
        path: "DIR/logs/events.log"
        level: "info"
db:
    path: "DIR/data/exportmap.db"
source:
    kind: static
session:
    store: memory
`)
	path := filepath.Join(dir, "exportmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir)

	// Cancel quickly to verify the startup sequence.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx, path))
	assert.FileExists(t, filepath.Join(dir, "data", "exportmap.db"))
	assert.FileExists(t, filepath.Join(dir, "logs", "server.log"))
}

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInitConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "exportmap.yaml")

	out, err := executeCmd(t, "init-config", "--config", path, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rest", cfg.Source.Kind)
}

func TestNormalizeCmd(t *testing.T) {
	rows := `[
		{"country": "Peru", "sector": "Minerals", "rank_2022": 9},
		{"country": "Vietnam", "sector": "Textiles", "rank_2022": 2},
		{"country": "Vietnam", "sector": "Electronics", "rank_2022": 14},
		{"country": "", "sector": "Orphan"}
	]`
	path := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))

	out, err := executeCmd(t, "normalize", path, "--env-file", "")
	require.NoError(t, err)

	var got normalizeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 4, got.Rows)
	assert.Equal(t, 1, got.Dropped)
	assert.Len(t, got.Singles, 1)
	require.Len(t, got.Multis, 1)
	assert.Equal(t, "Textiles", got.Multis[0].PrimarySector.Sector)
}

func TestNormalizeCmd_Errors(t *testing.T) {
	_, err := executeCmd(t, "normalize", "--env-file", "")
	assert.Error(t, err, "missing argument")

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))
	_, err = executeCmd(t, "normalize", empty, "--env-file", "")
	assert.ErrorContains(t, err, "no rows found")
}

func TestMirrorCmd_FromStatic(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir)

	out, err := executeCmd(t, "mirror", "--config", path, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "from static")

	appCfg, err := config.Load(path)
	require.NoError(t, err)
	dbConn, st, err := initDB(appCfg)
	require.NoError(t, err)
	defer dbConn.Close()

	n, err := st.CountRows(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n)

	_, err = executeCmd(t, "mirror", "--config", path, "--from", "sqlite", "--env-file", "")
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPORTMAP_TEST_SECRET=from-file\n"), 0o600))
	t.Setenv("EXPORTMAP_TEST_SECRET", "")
	require.NoError(t, os.Unsetenv("EXPORTMAP_TEST_SECRET"))

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "from-file", os.Getenv("EXPORTMAP_TEST_SECRET"))

	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestViewOptions_RuntimeOverrides(t *testing.T) {
	st := store.NewMemoryStateStore(0)
	prov := config.NewProvider(config.DefaultConfig(), st)
	ctx := context.Background()

	opts := viewOptions(ctx, prov)
	assert.Equal(t, 5.0, opts.DetailZoom)

	require.NoError(t, st.SetState(ctx, config.KeyDetailZoom, "7"))
	require.NoError(t, st.SetState(ctx, config.KeyDefaultZoom, "99"))
	opts = viewOptions(ctx, prov)
	assert.Equal(t, 7.0, opts.DetailZoom)
	assert.Equal(t, 20.0, opts.DefaultCamera.Zoom, "camera zoom is clamped")
}

func TestInitSource_UnknownKind(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Kind = "ftp"
	_, _, err := initSource(context.Background(), cfg, nil, nil)
	assert.ErrorContains(t, err, "unknown source kind")
}
