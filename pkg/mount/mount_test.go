package mount

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_AllocateDeallocate(t *testing.T) {
	base := t.TempDir()
	m := New(base)

	dir, err := m.Allocate()

	assert.Nil(t, err)
	assert.DirExists(t, dir)
	assert.True(t, strings.HasPrefix(dir, base+string(os.PathSeparator)))

	err = m.Deallocate(dir)

	assert.Nil(t, err)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestManager_Allocate_Error(t *testing.T) {
	m := New("/bad_directory/does/not/exist")

	dir, err := m.Allocate()

	assert.NotNil(t, err)
	assert.Equal(t, "", dir)
}

func TestManager_Deallocate_ForeignDirectory(t *testing.T) {
	base := t.TempDir()
	foreign := filepath.Join(base, "keep-me")
	require.NoError(t, os.Mkdir(foreign, 0o755))

	err := New(base).Deallocate(foreign)

	assert.Error(t, err)
	assert.DirExists(t, foreign)
}

func TestManager_CommitAndLeftovers(t *testing.T) {
	base := t.TempDir()
	m := New(base)

	dir, err := m.Allocate()
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "part"), []byte("data"), 0o644))

	leftovers, err := m.Leftovers()
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, leftovers)

	target := filepath.Join(base, "archive.part.000")
	require.NoError(t, m.Commit(dir, "part", target))

	assert.FileExists(t, target)
	assert.NoFileExists(t, filepath.Join(dir, "part"))
}
