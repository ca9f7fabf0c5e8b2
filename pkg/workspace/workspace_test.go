package workspace

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "secure-gdrive-temp")

	ws, err := Create(root)
	require.NoError(t, err)

	assert.Equal(t, root, filepath.Dir(ws.Path()))
	n, err := strconv.Atoi(filepath.Base(ws.Path()))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.Less(t, n, maxSuffix)

	info, err := os.Stat(ws.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateDistinct(t *testing.T) {
	root := t.TempDir()

	a, err := Create(root)
	require.NoError(t, err)
	b, err := Create(root)
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
}

func TestCleanupRemovesContents(t *testing.T) {
	ws, err := Create(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(ws.Join("nested", "deeper"), 0700))
	require.NoError(t, os.WriteFile(ws.Join("nested", "deeper", "archive.zip"), []byte("zip"), 0600))

	require.NoError(t, ws.Cleanup())
	_, err = os.Stat(ws.Path())
	assert.True(t, os.IsNotExist(err))

	// second call is a no-op
	assert.NoError(t, ws.Cleanup())
}

func TestJoin(t *testing.T) {
	ws := &Workspace{path: "/tmp/secure-gdrive-temp/42"}
	assert.Equal(t, "/tmp/secure-gdrive-temp/42/docs_protected.zip", ws.Join("docs_protected.zip"))
}
