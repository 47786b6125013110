package usage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	require.NoError(t, err)

	require.NoError(t, InitSchema(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_EnsureUnit_IsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	now := time.Unix(1000, 0)
	require.NoError(t, store.EnsureUnit("u1", "proj", CategoryCode, ContextProject, now))
	require.NoError(t, store.EnsureUnit("u1", "proj", CategoryCode, ContextProject, now.Add(time.Hour)))

	u, err := store.GetUnit("u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, StateActive, u.State)
	assert.True(t, u.CreatedAt.Equal(now))
}

func TestStore_ApplyUsage_BatchesPerUnit(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	now := time.Unix(2000, 0)
	require.NoError(t, store.EnsureUnit("u1", "proj", CategoryCode, ContextProject, now))

	records := []UsageRecord{
		{UnitID: "u1", AccessedAt: now.Add(time.Minute)},
		{UnitID: "u1", AccessedAt: now.Add(2 * time.Minute)},
	}
	require.NoError(t, store.ApplyUsage(records))

	u, err := store.GetUnit("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.AccessCount)
	assert.True(t, u.LastAccessed.Equal(now.Add(2*time.Minute)))
	assert.Equal(t, StateActive, u.State)
}

func TestStore_SetStateAndDeleteUnit(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	now := time.Unix(3000, 0)
	require.NoError(t, store.EnsureUnit("u1", "proj", CategoryCode, ContextProject, now))
	require.NoError(t, store.SetState("u1", StateArchived))

	u, err := store.GetUnit("u1")
	require.NoError(t, err)
	assert.Equal(t, StateArchived, u.State)

	require.NoError(t, store.DeleteUnit("u1"))
	u, err = store.GetUnit("u1")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestStore_ListByProject(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	now := time.Unix(4000, 0)
	require.NoError(t, store.EnsureUnit("u1", "proj", CategoryCode, ContextProject, now))
	require.NoError(t, store.EnsureUnit("u2", "proj", CategoryPreference, ContextUser, now))
	require.NoError(t, store.EnsureUnit("u3", "other", CategoryCode, ContextProject, now))

	units, err := store.ListByProject("proj")
	require.NoError(t, err)
	assert.Len(t, units, 2)
}
