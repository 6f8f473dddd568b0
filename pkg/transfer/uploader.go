package transfer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

type Uploader struct {
	logger  logrus.FieldLogger
	manager *Manager

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewUploader(logger logrus.FieldLogger, manager *Manager) *Uploader {
	return &Uploader{
		logger:  logger,
		manager: manager,
		now:     time.Now,
		sleep:   sleep,
	}
}

// Upload sends every artifact to the job's target. Each attempt retries only
// the artifacts still pending; attempts are sequential with a fixed delay.
// The outcome is returned even on failure so partial progress is reported.
func (u *Uploader) Upload(ctx context.Context, artifacts []domain.Artifact, job domain.Job) (domain.UploadOutcome, error) {
	ctx = appcontext.WithStage(ctx, string(domain.StageUpload))
	logger := appcontext.LoggerFromContext(u.logger, ctx)

	outcome := domain.UploadOutcome{
		Target:   job.UploadTarget,
		Uploaded: []string{},
		Pending:  domain.ArtifactPaths(artifacts),
	}

	tool, err := u.manager.Resolve(job.UploadTool, job.UploadTarget)
	if err != nil {
		return outcome, err
	}
	outcome.Tool = tool.Name()

	maxAttempts := job.UploadMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	delay := job.UploadRetryDelay
	if delay < 0 {
		delay = 0
	}

	logger.WithFields(logrus.Fields{
		"tool":     tool.Name(),
		"target":   job.UploadTarget,
		"files":    len(outcome.Pending),
		"attempts": maxAttempts,
	}).Info("Uploading artifacts")

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		actx := appcontext.WithAttempt(ctx, attempt)

		var pending []string
		lastErr = nil

		for _, p := range outcome.Pending {
			if err := ctx.Err(); err != nil {
				return outcome, domain.WrapError(domain.ErrInterrupted, err, "upload cancelled")
			}

			err := tool.Send(appcontext.WithArtifact(actx, p), p, job.UploadTarget)
			if err == nil {
				outcome.Uploaded = append(outcome.Uploaded, p)
				appcontext.LoggerFromContext(u.logger, actx).WithField("artifact", p).Info("Artifact uploaded")
				continue
			}

			switch domain.KindOf(err) {
			case domain.ErrInterrupted, domain.ErrToolNotFound, domain.ErrConfig:
				outcome.Attempts = append(outcome.Attempts, u.attempt(attempt, tool, job, err))
				return outcome, err
			}

			appcontext.LoggerFromContext(u.logger, actx).WithError(err).WithField("artifact", p).Warn("Upload attempt failed")
			pending = append(pending, p)
			lastErr = err
		}

		outcome.Pending = pending
		outcome.Attempts = append(outcome.Attempts, u.attempt(attempt, tool, job, lastErr))

		if len(pending) == 0 {
			break
		}

		if attempt < maxAttempts {
			if err := u.sleep(ctx, delay); err != nil {
				return outcome, domain.WrapError(domain.ErrInterrupted, err, "upload cancelled")
			}
		}
	}

	if !outcome.Complete() {
		total := len(outcome.Uploaded) + len(outcome.Pending)
		msg := fmt.Sprintf("%d of %d artifacts uploaded after %d attempts", len(outcome.Uploaded), total, len(outcome.Attempts))
		return outcome, toolexec.Fail(domain.ErrUploadFailed, lastErr, msg)
	}

	if job.AfterUploadRemove {
		if err := removeAll(outcome.Uploaded); err != nil {
			logger.WithError(err).Warn("Unable to remove some uploaded artifacts")
		} else {
			outcome.Removed = true
			logger.Info("Local artifacts removed after upload")
		}
	}

	return outcome, nil
}

// Plan describes the upload a run would perform, without sending anything.
func (u *Uploader) Plan(artifacts []domain.Artifact, job domain.Job) (domain.UploadOutcome, error) {
	outcome := domain.UploadOutcome{
		Target:   job.UploadTarget,
		Uploaded: []string{},
		Pending:  domain.ArtifactPaths(artifacts),
	}

	tool, err := u.manager.Resolve(job.UploadTool, job.UploadTarget)
	if err != nil {
		return outcome, err
	}
	outcome.Tool = tool.Name()

	return outcome, nil
}

func (u *Uploader) attempt(n int, tool Tool, job domain.Job, err error) domain.UploadAttempt {
	a := domain.UploadAttempt{
		Number:  n,
		Target:  job.UploadTarget,
		Tool:    tool.Name(),
		Success: err == nil,
		At:      u.now(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

func removeAll(paths []string) error {
	var result error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
