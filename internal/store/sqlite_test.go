package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
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

// --- Runs ---

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.StageHomepages, "company_list.csv", "company_list_with_homepages.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	stats := model.RunStats{Rows: 4, Written: 3, Skipped: 1, Failed: 1, DurationMs: 1200}
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, stats, ""))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageHomepages, got.Stage)
	assert.Equal(t, "company_list.csv", got.Input)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, stats, got.Stats)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, run.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestSQLite_FinishRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.FinishRun(context.Background(), "missing", model.RunStatusFailed, model.RunStats{}, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, stage := range []string{model.StageHomepages, model.StageProfiles, model.StageFeatures, model.StageProfiles} {
		ts := base.Add(time.Duration(i) * time.Minute)
		st.now = func() time.Time { return ts }
		_, err := st.CreateRun(ctx, stage, "in.csv", "out.csv")
		require.NoError(t, err)
	}

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, model.StageProfiles, all[0].Stage, "newest first")
	assert.Nil(t, all[0].FinishedAt)

	profiles, err := st.ListRuns(ctx, RunFilter{Stage: model.StageProfiles})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Empty(t, complete)
}

// --- API cache ---

func TestSQLite_Cache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCached(ctx, NamespaceProfile, "sierra.ai", []byte(`{"domain":"sierra.ai"}`), time.Hour))

	data, err := st.GetCached(ctx, NamespaceProfile, "sierra.ai")
	require.NoError(t, err)
	assert.Equal(t, `{"domain":"sierra.ai"}`, string(data))

	// Namespaces are independent.
	data, err = st.GetCached(ctx, NamespacePage, "sierra.ai")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_Cache_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCached(ctx, NamespaceSearch, "acme", []byte("v1"), time.Hour))
	require.NoError(t, st.SetCached(ctx, NamespaceSearch, "acme", []byte("v2"), time.Hour))

	data, err := st.GetCached(ctx, NamespaceSearch, "acme")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestSQLite_Cache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	data, err := st.GetCached(context.Background(), NamespaceSearch, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_Cache_ExpiredAndDeleted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }
	require.NoError(t, st.SetCached(ctx, NamespacePage, "old.ai", []byte("stale"), time.Minute))
	require.NoError(t, st.SetCached(ctx, NamespacePage, "new.ai", []byte("fresh"), time.Hour))

	now = now.Add(2 * time.Minute)
	data, err := st.GetCached(ctx, NamespacePage, "old.ai")
	require.NoError(t, err)
	assert.Nil(t, data)

	n, err := st.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err = st.GetCached(ctx, NamespacePage, "new.ai")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}
