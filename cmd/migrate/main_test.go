package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_bills.sql", true, 1, "create_bills"},
		{"0012_add_view.sql", true, 12, "add_view"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_view.sql":  "CREATE VIEW `{{PROJECT_ID}}.{{DATASET_ID}}.v` AS SELECT 1;",
		"0001_bills.sql": "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.bills` (id STRING);",
		"README.md":      "not a migration",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	migrations, err := readMigrations(dir, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "bills", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.ds.bills` (id STRING);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)

	again, err := readMigrations(dir, "other", "dataset")
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, again[0].Checksum, "checksum ignores placeholders")
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)
}

func TestReadMigrations_RepositoryFiles(t *testing.T) {
	migrations, err := readMigrations(filepath.Join("..", "..", "migrations", "bigquery"), "proj", "bills")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "create_bills", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "`proj.bills.bills`")
	assert.NotContains(t, migrations[0].SQL, "{{")
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}

	got := pending(migrations, map[int]bool{1: true, 3: true})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Version)
}
