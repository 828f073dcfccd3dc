package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/crechebooks/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add reminders index", "add_reminders_index"},
		{"Add-Reminders-Index", "add_reminders_index"},
		{"ADD__REMINDERS", "add_reminders"},
		{"seal trigger v2", "seal_trigger_v2"},
		{"  padded  ", "padded"},
		{"special!@#$chars", "special_chars"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create bookkeeping", "Initial schema")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_bookkeeping.up.sql"), first.UpPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: create bookkeeping")
	assert.Contains(t, string(up), "-- Description: Initial schema")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")

	t.Run("next migration continues the sequence", func(t *testing.T) {
		second, err := CreateMigration(dir, "add reminder index", "")
		require.NoError(t, err)
		assert.Equal(t, "000002", second.Version)
	})

	t.Run("creates missing directory", func(t *testing.T) {
		nested := filepath.Join(dir, "nested", "migrations")
		mf, err := CreateMigration(nested, "init", "")
		require.NoError(t, err)
		assert.Equal(t, "000001", mf.Version)
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		_, err := CreateMigration(dir, "!!!", "")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_index.up.sql":            {Data: []byte("--")},
		"000002_add_index.down.sql":          {Data: []byte("--")},
		"000001_create_bookkeeping.up.sql":   {Data: []byte("--")},
		"000001_create_bookkeeping.down.sql": {Data: []byte("--")},
		"README.md":                          {Data: []byte("docs")},
		"subdir.up.sql":                      {Mode: fs.ModeDir},
	}

	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_create_bookkeeping", "000002_add_index"}, names)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	names, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListMigrations_Embedded(t *testing.T) {
	names, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Contains(t, names, "000001_create_bookkeeping")
}
