package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/model"
	"github.com/sells-group/crawlspace/internal/store"
)

// inTempConfig runs the test in a temp dir whose config.yaml points the
// store at a fresh SQLite file.
func inTempConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "crawl.db")
	configContent := "store:\n  driver: sqlite\n  database_url: " + dbPath + "\nlog:\n  level: error\n  format: console\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(configContent), 0o644))

	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	oldCfg := cfg
	t.Cleanup(func() { cfg = oldCfg })
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWorkspaceCommands(t *testing.T) {
	inTempConfig(t)

	_, err := execute(t, "workspace", "init")
	require.ErrorIs(t, err, errNeedsConfirmation)

	out, err := execute(t, "workspace", "init", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "default selected")

	out, err = execute(t, "workspace", "create", "case-9")
	require.NoError(t, err)
	assert.Contains(t, out, "created workspace case-9")

	out, err = execute(t, "workspace", "select", "case-9")
	require.NoError(t, err)
	assert.Contains(t, out, "selected workspace case-9")

	_, err = execute(t, "workspace", "delete", "case-9")
	var sel *store.DeletingSelectedWorkspaceError
	require.ErrorAs(t, err, &sel)

	out, err = execute(t, "workspace", "list", "--output", "yaml")
	require.NoError(t, err)
	var list []model.Workspace
	require.NoError(t, yaml.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	for _, ws := range list {
		assert.Equal(t, ws.Name == "case-9", ws.Selected, ws.Name)
	}

	_, err = execute(t, "workspace", "select", "missing")
	assert.ErrorIs(t, err, store.ErrWorkspaceNotFound)
}

func TestIngestKnownCommand(t *testing.T) {
	dbPath := inTempConfig(t)
	input := filepath.Join(filepath.Dir(dbPath), "known.txt")
	require.NoError(t, os.WriteFile(input, []byte("# known\nhttps://a.com/1\nhttps://a.com/2\nnot a url\n\nhttps://a.com/1\n"), 0o644))

	out, err := execute(t, "ingest", "known", input)
	require.NoError(t, err)
	assert.Equal(t, "lines=6 inserted=2 duplicates=1 invalid=1\n", out)

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	sc, err := store.Resolve(context.Background(), st, collection.KnownData)
	require.NoError(t, err)
	h, err := st.GetHost(context.Background(), sc, "a.com")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.EqualValues(t, 3, h.NumURLs)
}

func TestNamespaceInitCommand(t *testing.T) {
	inTempConfig(t)

	_, err := execute(t, "namespace", "init", "known-data")
	require.ErrorIs(t, err, errNeedsConfirmation)

	out, err := execute(t, "namespace", "init", "known-data", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "known-urlsinfo")

	_, err = execute(t, "namespace", "init", "elsewhere", "--yes")
	var nse *collection.InvalidNamespaceError
	assert.ErrorAs(t, err, &nse)
}

func TestMigrateCommand(t *testing.T) {
	inTempConfig(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")
}

func TestRunNamespaceInit_DropsRows(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ns.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.InitWorkspaces(ctx))

	sc, err := store.Resolve(ctx, st, collection.CrawlData)
	require.NoError(t, err)
	_, err = st.InsertURL(ctx, sc, model.URLRecord{URL: "https://x.com/"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runNamespaceInit(ctx, st, &out, "crawl-data"))
	assert.Equal(t, "reinitialized crawl-data (urlinfo)\n", out.String())

	urls, err := st.ListURLs(ctx, sc, "", 0)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestWriteWorkspaces(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	list := []model.Workspace{
		{ID: "id-1", Name: "default", Selected: true, Keywords: []string{"a", "b"}, CreatedAt: created},
		{ID: "id-2", Name: "case-1", BlurLevel: 2, CreatedAt: created},
	}

	var table bytes.Buffer
	require.NoError(t, writeWorkspaces(&table, list, "table"))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SELECTED"))
	assert.True(t, strings.HasPrefix(lines[1], "*"))
	assert.Contains(t, lines[1], "2026-03-01 09:30")

	var js bytes.Buffer
	require.NoError(t, writeWorkspaces(&js, list, "json"))
	assert.Contains(t, js.String(), `"name": "case-1"`)

	var ym bytes.Buffer
	require.NoError(t, writeWorkspaces(&ym, list, "yaml"))
	assert.Contains(t, ym.String(), "name: case-1")
	assert.Contains(t, ym.String(), "blur_level: 2")

	assert.Error(t, writeWorkspaces(&bytes.Buffer{}, list, "xml"))
}

func TestWriteSeeds(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeSeeds(&out, []model.SeedRecord{
		{URL: "https://seed.com/", State: "running", JobID: "j1", Spider: "website_finder"},
	}))
	assert.Contains(t, out.String(), "https://seed.com/")
	assert.Contains(t, out.String(), "running")
}
