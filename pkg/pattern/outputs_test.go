package pattern

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/archivist/pkg/domain"
)

func collectedRels(t *testing.T, set domain.FileSet) []string {
	var rels []string
	for _, f := range set.Files {
		rels = append(rels, f.Rel)
	}
	return rels
}

func TestOutputs_DestBelowSourceIsPruned(t *testing.T) {
	src := filepath.Join(t.TempDir(), "home")
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "out", "nightly.log"), "running")
	writeFile(t, filepath.Join(src, "out", "older_backup.tar"), "old")
	writeFile(t, filepath.Join(src, "sums", "nightly.tar.sha256"), "sum")

	m, err := Compile([]string{"*.tmp"})
	require.NoError(t, err)

	excluder := WithOutputs(m, domain.Job{
		DestDir:     filepath.Join(src, "out"),
		ChecksumDir: filepath.Join(src, "sums"),
		BaseName:    "nightly",
	})

	set, err := Collect(context.Background(), discardLogger(), []string{src}, excluder)

	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, collectedRels(t, set))
	assert.Empty(t, excluder.Shared([]string{src}))
}

func TestOutputs_DestEqualToSourceSkipsRunFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "nightly.log"), "running")
	writeFile(t, filepath.Join(src, "nightly.tar.001"), "part")
	writeFile(t, filepath.Join(src, ".archivist-staging-1234", "nightly.tar"), "partial")
	writeFile(t, filepath.Join(src, "docs", "nightly.log"), "not ours")

	excluder := WithOutputs(nil, domain.Job{DestDir: src, BaseName: "nightly"})

	set, err := Collect(context.Background(), discardLogger(), []string{src}, excluder)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "docs/nightly.log"}, collectedRels(t, set))
	assert.Equal(t, []string{src}, excluder.Shared([]string{src}))
}

func TestOutputs_KeepsUserRules(t *testing.T) {
	m, err := Compile([]string{"*.log"})
	require.NoError(t, err)

	excluder := WithOutputs(m, domain.Job{DestDir: "/var/backups", BaseName: "nightly"})

	assert.True(t, excluder.Match("/srv/app", "debug.log", false))
	assert.False(t, excluder.Match("/srv/app", "main.go", false))
	assert.False(t, excluder.Match("/var", "lib/nightly.tar", false))
	assert.True(t, excluder.Match("/var", "backups", true))
}
