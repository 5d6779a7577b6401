package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestNewSQLite_InvalidDSN(t *testing.T) {
	st, err := NewSQLite("/nonexistent/dir/subdir/test.db")
	if err == nil {
		// Some drivers defer the failure to first use.
		err = st.Migrate(context.Background())
		st.Close() //nolint:errcheck
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestNewSQLite_WALMode(t *testing.T) {
	st := newTestSQLiteStore(t)

	var mode string
	require.NoError(t, st.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestNewSQLite_CloseAndReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s1, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Migrate(ctx))
	require.NoError(t, s1.InitWorkspaces(ctx))
	require.NoError(t, s1.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() }) //nolint:errcheck

	sel, err := s2.SelectedWorkspace(ctx)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, collection.DefaultWorkspace, sel.Name)
}

func TestSQLite_MigrateCreatesIndexes(t *testing.T) {
	st := newTestSQLiteStore(t)

	want := []string{"urlinfo_url_key", "urlinfo_host_idx", "hostinfo_host_key", "hostinfo_host_score_idx",
		"seedinfo_url_key", "cfinfo_fingerprint_key", "cfinfo_score_idx",
		"cc-urlinfo_url_key", "known-hostsinfo_host_key"}
	for _, name := range want {
		var n int
		err := st.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "index %s", name)
	}
}

func TestSQLite_RegexpFunction(t *testing.T) {
	st := newTestSQLiteStore(t)

	tests := []struct {
		subject, pattern string
		want             int
	}{
		{"fraud-shop.com", "^fraud", 1},
		{"bakery.com", "^fraud", 0},
		{"Example.COM", "(?i)example", 1},
	}
	for _, tt := range tests {
		var got int
		err := st.db.QueryRow(`SELECT ? REGEXP ?`, tt.subject, tt.pattern).Scan(&got)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s REGEXP %s", tt.subject, tt.pattern)
	}

	var got *int
	require.NoError(t, st.db.QueryRow(`SELECT NULL REGEXP 'x'`).Scan(&got))
	assert.Nil(t, got)
}

func TestSQLite_ConcurrentInsertsCountEveryURL(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.InitWorkspaces(ctx))
	sc, err := Resolve(ctx, st, collection.CrawlData)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := st.InsertURL(ctx, sc, model.URLRecord{URL: fmt.Sprintf("http://race.com/%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	h, err := st.GetHost(ctx, sc, "race.com")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.EqualValues(t, n, h.NumURLs)
}
