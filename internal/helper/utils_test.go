package helper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndexName(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name, err := NewIndexName("index_")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(name, "index_"))
		assert.Len(t, name, len("index_")+32)
		assert.False(t, seen[name], "duplicate index name %s", name)
		seen[name] = true
	}
}

func TestCreateAndRemoveFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateFolder(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	require.NoError(t, RemoveFolder(dir))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	// removing again is fine
	assert.NoError(t, RemoveFolder(dir))
}
