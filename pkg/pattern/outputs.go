package pattern

import (
	"path/filepath"
	"strings"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/mount"
)

// Outputs keeps a run from archiving what it writes itself. Output
// directories strictly below a source root are pruned as a whole. Where an
// output directory is the root itself, only the run's own files and staging
// directories are left out.
type Outputs struct {
	excluder domain.Excluder
	dirs     []string
	prefix   string
}

func WithOutputs(excluder domain.Excluder, job domain.Job) *Outputs {
	o := &Outputs{excluder: excluder}
	if job.BaseName != "" {
		o.prefix = job.BaseName + "."
	}

	for _, dir := range []string{job.DestDir, job.SummaryDir, job.ChecksumDir} {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		o.dirs = append(o.dirs, filepath.Clean(dir))
	}

	return o
}

// Shared returns the sources that are themselves an output directory.
func (o *Outputs) Shared(sources []string) []string {
	var shared []string
	for _, source := range sources {
		if abs, err := filepath.Abs(source); err == nil {
			source = abs
		}
		for _, dir := range o.dirs {
			if filepath.Clean(source) == dir {
				shared = append(shared, source)
				break
			}
		}
	}
	return shared
}

func (o *Outputs) Match(root, rel string, isDir bool) bool {
	if o.excluder != nil && o.excluder.Match(root, rel, isDir) {
		return true
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	root = filepath.Clean(root)
	p := filepath.Join(root, filepath.FromSlash(rel))

	for _, dir := range o.dirs {
		if dir != root && within(root, dir) && (p == dir || within(dir, p)) {
			return true
		}

		if filepath.Dir(p) == dir {
			name := filepath.Base(p)
			if (o.prefix != "" && strings.HasPrefix(name, o.prefix)) || (isDir && mount.IsStaging(name)) {
				return true
			}
		}
	}

	return false
}

// within reports whether p lies strictly below dir.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
