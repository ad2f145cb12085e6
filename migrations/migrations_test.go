package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(sqlMigrations, "*.up.sql")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"20250701120000_create_users.tx.up.sql",
		"20250701120100_rename_legacy_email_hash.tx.up.sql",
	}, names)
	assert.Len(t, Migrations.Sorted(), 2)
}
