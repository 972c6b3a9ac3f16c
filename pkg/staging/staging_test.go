package staging

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndRelease(t *testing.T) {
	root := t.TempDir()

	area, err := Create(root)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(area.Dir(), root))
	assert.DirExists(t, area.Dir())

	require.NoError(t, os.WriteFile(area.Path("bear-300.png"), []byte("x"), 0o644))
	require.NoError(t, area.Release())
	assert.NoDirExists(t, area.Dir())

	// second release is a no-op
	require.NoError(t, area.Release())
}

func TestCreateIsUniquePerCall(t *testing.T) {
	root := t.TempDir()
	a, err := Create(root)
	require.NoError(t, err)
	b, err := Create(root)
	require.NoError(t, err)
	assert.NotEqual(t, a.Dir(), b.Dir())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCreateFailsUnderFile(t *testing.T) {
	root := t.TempDir()
	file := root + "/not-a-dir"
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := Create(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create staging area")
}
