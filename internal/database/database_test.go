package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, "file:./iserve.db?"+pragmas, buildDSN("./iserve.db"))
	assert.Equal(t, "file:x?mode=memory&cache=shared&"+pragmas, buildDSN("file:x?mode=memory&cache=shared"))
}

func TestMigrate_CreatesSchemaAndIsIdempotent(t *testing.T) {
	db, err := New("file:migrate_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var tables []string
	require.NoError(t, db.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'events') ORDER BY name`))
	assert.Equal(t, []string{"events", "users"}, tables)
}

func TestMigrate_EmailIsUnique(t *testing.T) {
	db, err := New("file:migrate_unique_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))

	const q = `INSERT INTO users (id, email, password_hash) VALUES (?, ?, 'h')`
	_, err = db.Exec(q, "1", "a@x.com")
	require.NoError(t, err)
	_, err = db.Exec(q, "2", "A@X.com")
	require.Error(t, err)
}
