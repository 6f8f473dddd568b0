package integrity

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
)

type Stage struct {
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewStage(logger logrus.FieldLogger) *Stage {
	return &Stage{logger: logger, now: time.Now}
}

// Finalize checksums every artifact and writes the checksum and summary files
// the job asks for. Artifacts are only read.
func (s *Stage) Finalize(ctx context.Context, job domain.Job, result *domain.Result) error {
	ctx = appcontext.WithStage(ctx, string(domain.StageIntegrity))
	logger := appcontext.LoggerFromContext(s.logger, ctx)

	if job.MakeChecksum {
		sums := make(map[string]string, len(result.Artifacts))
		for _, a := range result.Artifacts {
			if err := ctx.Err(); err != nil {
				return domain.WrapError(domain.ErrInterrupted, err, "checksum cancelled")
			}

			digest, err := Checksum(a.Path)
			if err != nil {
				return errors.Wrapf(err, "unable to checksum %s", a.Path)
			}
			sums[filepath.Base(a.Path)] = digest
		}

		name := job.ChecksumPath(result.Archive)
		if err := writeChecksums(name, result.Artifacts, sums); err != nil {
			return err
		}

		result.Checksums = sums
		result.ChecksumFile = name

		logger.WithField("file", name).Info("Checksums written")
	}

	if job.MakeSummary {
		if err := s.WriteSummary(ctx, job, result); err != nil {
			return err
		}
	}

	return nil
}

// WriteSummary (re)writes the summary file from the current state of result.
func (s *Stage) WriteSummary(ctx context.Context, job domain.Job, result *domain.Result) error {
	if !job.MakeSummary {
		return nil
	}

	summary := BuildSummary(job, result, s.now())
	name := job.SummaryPath()

	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to encode summary")
	}

	if err := writeAtomic(name, append(b, '\n')); err != nil {
		return errors.Wrap(err, "unable to write summary")
	}

	result.Summary = &summary
	result.SummaryFile = name

	appcontext.LoggerFromContext(s.logger, ctx).WithField("file", name).Debug("Summary written")

	return nil
}

func BuildSummary(job domain.Job, result *domain.Result, now time.Time) domain.Summary {
	finished := result.FinishedAt
	if finished.IsZero() {
		finished = now
	}

	excludes := job.Excludes
	if excludes == nil {
		excludes = []string{}
	}

	return domain.Summary{
		RunID:            result.RunID,
		Status:           result.Status,
		StartedAt:        result.StartedAt,
		FinishedAt:       finished,
		OutputDir:        job.DestDir,
		Archive:          result.Archive,
		TotalSize:        result.TotalSize(),
		TotalSizeHuman:   domain.HumanSize(result.TotalSize()),
		Artifacts:        result.Artifacts,
		Files:            domain.ArtifactPaths(result.Artifacts),
		Checksums:        result.Checksums,
		RetainedOriginal: result.RetainedOriginal,
		Sources:          job.Sources,
		Excludes:         excludes,
		Settings:         job.Settings(),
		FileCount:        result.FileCount,
		Upload:           result.Upload,
		FailedStage:      result.FailedStage,
		Error:            result.Error,
	}
}

// Checksum returns the hex SHA-256 digest of the file.
func Checksum(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeChecksums(name string, artifacts []domain.Artifact, sums map[string]string) error {
	var b strings.Builder
	for _, a := range artifacts {
		base := filepath.Base(a.Path)
		fmt.Fprintf(&b, "%s  %s\n", sums[base], base)
	}

	if err := writeAtomic(name, []byte(b.String())); err != nil {
		return errors.Wrap(err, "unable to write checksum file")
	}
	return nil
}

func writeAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), name)
}

// Entry is one verified line of a checksum file.
type Entry struct {
	Name     string
	Expected string
	Actual   string
	Err      error
}

func (e Entry) OK() bool {
	return e.Err == nil && e.Expected == e.Actual
}

// Verify re-checks a checksum file. Names are resolved against dir, or the
// checksum file's own directory when dir is empty. The returned error is set
// when the file cannot be read or any entry does not match.
func Verify(ctx context.Context, name, dir string) ([]Entry, error) {
	if dir == "" {
		dir = filepath.Dir(name)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open checksum file")
	}
	defer f.Close()

	var entries []Entry
	failed := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, "  ", 2)
		if len(fields) != 2 {
			return entries, errors.Errorf("malformed checksum line: %q", line)
		}

		e := Entry{Name: strings.TrimPrefix(fields[1], "*"), Expected: strings.ToLower(fields[0])}
		e.Actual, e.Err = Checksum(filepath.Join(dir, e.Name))
		if !e.OK() {
			failed++
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, errors.Wrap(err, "unable to read checksum file")
	}

	if failed > 0 {
		return entries, errors.Errorf("%d of %d files failed verification", failed, len(entries))
	}

	return entries, nil
}
