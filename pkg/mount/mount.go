package mount

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const stagingPrefix = ".archivist-staging-"

// Manager hands out private staging directories below base. Staging lives on
// the same filesystem as its base so that committing a file is a rename.
type Manager struct {
	base string
}

func New(base string) *Manager {
	return &Manager{
		base: base,
	}
}

func (m *Manager) Allocate() (string, error) {
	dir := filepath.Join(m.base, stagingPrefix+uuid.New().String())

	err := os.Mkdir(dir, 0o700)
	if err != nil {
		return "", errors.Wrap(err, "unable to allocate staging directory")
	}
	return dir, nil
}

func (m *Manager) Deallocate(dir string) error {
	if !m.owns(dir) {
		return errors.Errorf("refusing to remove %s: not a staging directory of %s", dir, m.base)
	}
	return os.RemoveAll(dir)
}

// Commit moves name from the staging directory dir to target and syncs the
// parent directory.
func (m *Manager) Commit(dir, name, target string) error {
	if !m.owns(dir) {
		return errors.Errorf("%s is not a staging directory of %s", dir, m.base)
	}

	if err := os.Rename(filepath.Join(dir, name), target); err != nil {
		return errors.Wrapf(err, "unable to commit %s", name)
	}

	parent, err := os.Open(filepath.Dir(target))
	if err != nil {
		return nil
	}
	defer parent.Close()

	_ = parent.Sync()
	return nil
}

// Leftovers lists staging directories abandoned by interrupted runs.
func (m *Manager) Leftovers() ([]string, error) {
	entries, err := os.ReadDir(m.base)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list staging base")
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && IsStaging(e.Name()) {
			dirs = append(dirs, filepath.Join(m.base, e.Name()))
		}
	}
	return dirs, nil
}

func (m *Manager) owns(dir string) bool {
	return filepath.Dir(filepath.Clean(dir)) == filepath.Clean(m.base) &&
		IsStaging(filepath.Base(dir))
}

// IsStaging reports whether name is a staging directory name.
func IsStaging(name string) bool {
	return strings.HasPrefix(name, stagingPrefix)
}
