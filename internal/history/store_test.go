package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)

	first := NewRun("visibility", "uat")
	first.StartedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	first.Violations = 2
	require.NoError(t, store.Record(first))

	second := NewRun("stubs", "")
	second.StartedAt = time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	second.Passed = true
	require.NoError(t, store.Record(second))

	runs, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "stubs", runs[0].Command, "newest first")
	assert.Equal(t, "visibility", runs[1].Command)
	assert.Equal(t, 2, runs[1].Violations)
	assert.False(t, runs[1].Passed)
	assert.True(t, runs[0].Passed)
}

func TestRecentLimit(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := NewRun("cap", "uat")
		run.StartedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Record(run))
	}

	runs, err := store.Recent(3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestLastByCommand(t *testing.T) {
	store := openStore(t)

	none, err := store.Last("drift")
	require.NoError(t, err)
	assert.Nil(t, none)

	older := NewRun("drift", "")
	older.StartedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(older))

	newer := NewRun("drift", "")
	newer.StartedAt = time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	newer.Passed = true
	require.NoError(t, store.Record(newer))

	last, err := store.Last("drift")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, newer.ID, last.ID)
}
