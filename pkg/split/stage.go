package split

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/mount"
)

func PartName(path string, index int) string {
	return fmt.Sprintf("%s.part.%03d", path, index)
}

type Stage struct {
	logger logrus.FieldLogger

	sync func(f *os.File) error
}

func NewStage(logger logrus.FieldLogger) *Stage {
	return &Stage{
		logger: logger,
		sync:   (*os.File).Sync,
	}
}

// Split cuts artifact into parts no larger than threshold. Parts are written
// to a staging directory and committed only when all of them are on disk.
// On failure the original is left untouched and returned as the only artifact.
// retained is set when the original stays on disk next to its parts.
func (s *Stage) Split(ctx context.Context, artifact domain.Artifact, threshold int64, policy domain.SplitPolicy) (parts []domain.Artifact, retained string, err error) {
	if threshold <= 0 || artifact.Size <= threshold {
		return []domain.Artifact{artifact}, "", nil
	}

	ctx = appcontext.WithArtifact(appcontext.WithStage(ctx, string(domain.StageSplit)), artifact.Path)
	logger := appcontext.LoggerFromContext(s.logger, ctx)

	logger.WithFields(logrus.Fields{
		"threshold": threshold,
		"parts":     PartCount(artifact.Size, threshold),
	}).Info("Splitting archive")

	parts, err = s.split(ctx, artifact, threshold)
	if err != nil {
		kind := domain.ErrSplitFailed
		if ctx.Err() != nil {
			kind = domain.ErrInterrupted
		}
		logger.WithError(err).Error("Split failed, keeping original archive")
		return []domain.Artifact{artifact}, "", domain.WrapError(kind, err, "unable to split "+filepath.Base(artifact.Path))
	}

	if !policy.RemoveOriginal() {
		logger.Info("Keeping original archive after split")
		return parts, artifact.Path, nil
	}

	if err := os.Remove(artifact.Path); err != nil {
		logger.WithError(err).Warn("Unable to remove original archive after split")
		return parts, artifact.Path, nil
	}

	return parts, "", nil
}

// Plan predicts the parts of a split without touching the disk.
func (s *Stage) Plan(artifact domain.Artifact, threshold int64, policy domain.SplitPolicy) ([]domain.Artifact, string) {
	if threshold <= 0 || artifact.Size <= threshold {
		return []domain.Artifact{artifact}, ""
	}

	var parts []domain.Artifact
	remaining := artifact.Size
	for i := 0; remaining > 0; i++ {
		size := threshold
		if remaining < threshold {
			size = remaining
		}
		parts = append(parts, part(artifact, i, size))
		remaining -= size
	}

	retained := ""
	if !policy.RemoveOriginal() {
		retained = artifact.Path
	}
	return parts, retained
}

func (s *Stage) split(ctx context.Context, artifact domain.Artifact, threshold int64) (parts []domain.Artifact, err error) {
	staging := mount.New(filepath.Dir(artifact.Path))

	dir, err := staging.Allocate()
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := staging.Deallocate(dir); derr != nil {
			err = multierror.Append(err, derr).ErrorOrNil()
		}
	}()

	in, err := os.Open(artifact.Path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open archive")
	}
	defer in.Close()

	count := PartCount(artifact.Size, threshold)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := filepath.Base(PartName(artifact.Path, i))
		n, err := s.writePart(filepath.Join(dir, name), in, threshold)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to write part %d", i)
		}
		if n == 0 {
			break
		}

		parts = append(parts, part(artifact, i, n))
	}

	if _, err := in.Read(make([]byte, 1)); err != io.EOF {
		return nil, errors.New("archive changed while splitting")
	}

	for i, p := range parts {
		if err := staging.Commit(dir, filepath.Base(p.Path), p.Path); err != nil {
			for _, committed := range parts[:i] {
				_ = os.Remove(committed.Path)
			}
			return nil, err
		}
	}

	return parts, nil
}

func (s *Stage) writePart(name string, in io.Reader, size int64) (n int64, err error) {
	out, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	n, err = io.CopyN(out, in, size)
	if err != nil && err != io.EOF {
		return n, err
	}

	return n, s.sync(out)
}

func part(artifact domain.Artifact, index int, size int64) domain.Artifact {
	return domain.Artifact{
		Path:       PartName(artifact.Path, index),
		Format:     artifact.Format,
		Size:       size,
		Encryption: artifact.Encryption,
		SplitPart:  true,
		PartIndex:  index,
	}
}
