package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/mount"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

const listFileName = "files.lst"

// Request is what a backend needs to produce one archive.
type Request struct {
	Dest       string
	ListFile   string
	Files      domain.FileSet
	Encryption domain.EncryptionMode
	Secret     string
}

// Backend turns a file list into an archive file at Request.Dest.
type Backend interface {
	Produce(ctx context.Context, req Request) error
}

type Builder struct {
	logger   logrus.FieldLogger
	backends map[domain.Format]Backend
}

func NewBuilder(logger logrus.FieldLogger, runner toolexec.Runner) *Builder {
	return &Builder{
		logger: logger,
		backends: map[domain.Format]Backend{
			domain.FormatTar: &TarBackend{runner: runner},
			domain.FormatTgz: &TgzBackend{runner: runner},
			domain.FormatZip: &ZipBackend{runner: runner},
			domain.Format7z:  &SevenZipBackend{runner: runner},
		},
	}
}

// WithBackend replaces the backend used for format.
func (b *Builder) WithBackend(format domain.Format, backend Backend) *Builder {
	b.backends[format] = backend
	return b
}

// Build produces exactly one archive for the job. The archive is assembled in
// a staging directory inside the destination and renamed into place, so a
// failed build leaves nothing behind.
func (b *Builder) Build(ctx context.Context, job domain.Job, files domain.FileSet, secret string) (artifact domain.Artifact, err error) {
	ctx = appcontext.WithStage(ctx, string(domain.StageArchive))
	logger := appcontext.LoggerFromContext(b.logger, ctx)

	if files.Len() == 0 {
		return artifact, domain.NewError(domain.ErrNothingToArchive, "file set is empty")
	}

	backend, ok := b.backends[job.Format]
	if !ok {
		return artifact, domain.ConfigErrorf("unsupported archive format %q", job.Format)
	}

	if err := CheckEncryption(job.Format, job.Encryption); err != nil {
		return artifact, err
	}

	if err := os.MkdirAll(job.DestDir, 0o755); err != nil {
		return artifact, domain.WrapError(domain.ErrArchiveBuildFailed, err, "unable to create destination directory")
	}

	staging := mount.New(job.DestDir)
	if leftovers, err := staging.Leftovers(); err == nil && len(leftovers) > 0 {
		logger.WithField("dirs", leftovers).Warn("Staging directories left by interrupted runs")
	}

	dir, err := staging.Allocate()
	if err != nil {
		return artifact, domain.WrapError(domain.ErrArchiveBuildFailed, err, "unable to allocate staging directory")
	}
	defer func() {
		if derr := staging.Deallocate(dir); derr != nil {
			logger.WithError(derr).Warn("Unable to remove staging directory")
		}
	}()

	listFile := filepath.Join(dir, listFileName)
	if err := writeList(listFile, files.Paths()); err != nil {
		return artifact, domain.WrapError(domain.ErrArchiveBuildFailed, err, "unable to write file list")
	}

	name := filepath.Base(job.ArchivePath())
	req := Request{
		Dest:     filepath.Join(dir, name),
		ListFile: listFile,
		Files:    files,
	}
	if job.Encryption.AtCreation() {
		req.Encryption = job.Encryption
		req.Secret = secret
	}

	logger.WithFields(logrus.Fields{
		"format": job.Format,
		"files":  files.Len(),
	}).Info("Building archive")

	if err := backend.Produce(ctx, req); err != nil {
		return artifact, toolexec.Fail(domain.ErrArchiveBuildFailed, err, "archiver failed")
	}

	info, err := os.Stat(req.Dest)
	if err != nil {
		return artifact, domain.WrapError(domain.ErrArchiveBuildFailed, err, "archiver produced no output")
	}

	target := job.ArchivePath()
	if err := staging.Commit(dir, name, target); err != nil {
		return artifact, domain.WrapError(domain.ErrArchiveBuildFailed, err, "unable to move archive into place")
	}

	logger.WithFields(logrus.Fields{"archive": target, "size": info.Size()}).Info("Archive built")

	return domain.Artifact{
		Path:       target,
		Format:     job.Format,
		Size:       info.Size(),
		Encryption: req.Encryption,
	}, nil
}

// Plan predicts the archive a build would produce, using the uncompressed
// size of the selected files as the size estimate.
func (b *Builder) Plan(job domain.Job, files domain.FileSet) (domain.Artifact, error) {
	if files.Len() == 0 {
		return domain.Artifact{}, domain.NewError(domain.ErrNothingToArchive, "file set is empty")
	}
	if _, ok := b.backends[job.Format]; !ok {
		return domain.Artifact{}, domain.ConfigErrorf("unsupported archive format %q", job.Format)
	}
	if err := CheckEncryption(job.Format, job.Encryption); err != nil {
		return domain.Artifact{}, err
	}

	a := domain.Artifact{
		Path:   job.ArchivePath(),
		Format: job.Format,
		Size:   files.Size(),
	}
	if job.Encryption.AtCreation() {
		a.Encryption = job.Encryption
	}
	return a, nil
}

// CheckEncryption reports whether mode can be applied to archives of format.
func CheckEncryption(format domain.Format, mode domain.EncryptionMode) error {
	switch mode {
	case domain.EncryptionZipAES:
		if format != domain.FormatZip && format != domain.Format7z {
			return domain.ConfigErrorf("zip-aes encryption requires zip or 7z format, got %s", format)
		}
	case domain.EncryptionZipLegacy:
		if format != domain.FormatZip {
			return domain.ConfigErrorf("zip-legacy encryption requires zip format, got %s", format)
		}
	}
	return nil
}

func writeList(name string, paths []string) (err error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	for _, p := range paths {
		if strings.ContainsAny(p, "\n\r") {
			return errors.Errorf("file name with line break is not supported: %q", p)
		}
		if _, err := f.WriteString(p + "\n"); err != nil {
			return err
		}
	}

	return nil
}
