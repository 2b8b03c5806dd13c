package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsSortsByVersion(t *testing.T) {
	files := fstest.MapFS{
		"0002_add_column.sql": {Data: []byte("ALTER TABLE t ADD COLUMN b int;")},
		"0001_init.sql":       {Data: []byte("CREATE TABLE t (a int);")},
		"0010_more.sql":       {Data: []byte("ALTER TABLE t ADD COLUMN c int;")},
		"README.md":           {Data: []byte("not a migration")},
	}

	migrations, err := loadMigrations(files)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "0001_init.sql", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE")
}

func TestLoadMigrationsRejectsBadName(t *testing.T) {
	files := fstest.MapFS{
		"init.sql": {Data: []byte("CREATE TABLE t (a int);")},
	}
	_, err := loadMigrations(files)
	assert.Error(t, err)
}
