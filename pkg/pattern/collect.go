package pattern

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
)

// Collect walks every source root and returns the files that survive the
// exclude rules. Excluded directories are pruned, unreadable entries are
// skipped with a warning, so the walk itself never fails half-way.
func Collect(ctx context.Context, logger logrus.FieldLogger, sources []string, excluder domain.Excluder) (domain.FileSet, error) {
	logger = appcontext.LoggerFromContext(logger, ctx)

	var set domain.FileSet

	for _, source := range sources {
		info, err := os.Lstat(source)
		if err != nil {
			logger.WithError(err).WithField("source", source).Warn("Source not found, skipping")
			continue
		}

		if !info.IsDir() {
			if excluded(excluder, filepath.Dir(source), info.Name(), false) {
				continue
			}
			set.Files = append(set.Files, domain.SourceFile{
				Root: source,
				Path: source,
				Rel:  info.Name(),
				Size: info.Size(),
			})
			continue
		}

		err = filepath.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if err != nil {
				logger.WithError(err).WithField("path", p).Warn("Unable to read path, skipping")
				if d != nil && d.IsDir() && p != source {
					return filepath.SkipDir
				}
				return nil
			}

			if p == source {
				return nil
			}

			rel, err := filepath.Rel(source, p)
			if err != nil {
				return nil
			}

			if excluded(excluder, source, rel, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			var size int64
			if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
				size = info.Size()
			}

			set.Files = append(set.Files, domain.SourceFile{
				Root: source,
				Path: p,
				Rel:  filepath.ToSlash(rel),
				Size: size,
			})

			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return set, domain.WrapError(domain.ErrInterrupted, ctx.Err(), "walk cancelled")
			}
			logger.WithError(err).WithField("source", source).Warn("Walk ended early")
		}
	}

	if set.Len() == 0 {
		return set, domain.NewError(domain.ErrNothingToArchive, "no files left after applying exclude rules")
	}

	return set, nil
}

func excluded(excluder domain.Excluder, root, rel string, isDir bool) bool {
	if excluder == nil {
		return false
	}
	return excluder.Match(root, rel, isDir)
}
