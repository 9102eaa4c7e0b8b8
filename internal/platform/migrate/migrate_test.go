package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.sql", "0001_a.SQL", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.sql"), 0o700))

	files, err := listSQLFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.SQL", "0002_b.sql"}, files)

	_, err = listSQLFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestResolveDir(t *testing.T) {
	got, err := ResolveDir("/tmp/x/../migrations")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/migrations", got)

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "migrations"), 0o700))
	t.Chdir(dir)
	got, err = ResolveDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "migrations"), got)
}

// 仓库自带的迁移文件至少要能被列出来
func TestRepoMigrationsListed(t *testing.T) {
	files, err := listSQLFiles(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	assert.Contains(t, files, "0001_agent_events.sql")
}
