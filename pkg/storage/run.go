package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/yurykabanov/archivist/pkg/domain"
)

const (
	runInsertQuery = `
		INSERT INTO runs (
			run_id, base_name, status,
			failed_stage, error_kind, error,
			archive, artifact_count, total_size,
			upload_target, upload_attempts,
			summary_file, settings,
			started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	runSelectRecent = `
		SELECT
			id, run_id, base_name, status,
			failed_stage, error_kind, error,
			archive, artifact_count, total_size,
			upload_target, upload_attempts,
			summary_file, settings,
			started_at, finished_at
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`

	runSelectLastSuccessful = `
		SELECT
			id, run_id, base_name, status,
			failed_stage, error_kind, error,
			archive, artifact_count, total_size,
			upload_target, upload_attempts,
			summary_file, settings,
			started_at, finished_at
		FROM runs
		WHERE id IN (
			SELECT MAX(id) FROM runs WHERE status = 'success' GROUP BY base_name
		)
		ORDER BY base_name
	`
)

// Run is one row of the run ledger.
type Run struct {
	Id             int64
	RunId          string
	BaseName       string
	Status         string
	FailedStage    string
	ErrorKind      string
	Error          string
	Archive        string
	ArtifactCount  int
	TotalSize      int64
	UploadTarget   string
	UploadAttempts int
	SummaryFile    string
	Settings       string
	StartedAt      time.Time
	FinishedAt     time.Time
}

func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func NewRun(job domain.Job, result *domain.Result) (Run, error) {
	settings, err := json.Marshal(job.Settings())
	if err != nil {
		return Run{}, errors.Wrap(err, "unable to encode settings")
	}

	run := Run{
		RunId:         result.RunID,
		BaseName:      job.BaseName,
		Status:        string(result.Status),
		FailedStage:   string(result.FailedStage),
		ErrorKind:     string(result.ErrorKind),
		Error:         result.Error,
		Archive:       result.Archive,
		ArtifactCount: len(result.Artifacts),
		TotalSize:     result.TotalSize(),
		UploadTarget:  job.UploadTarget,
		SummaryFile:   result.SummaryFile,
		Settings:      string(settings),
		StartedAt:     result.StartedAt.UTC(),
		FinishedAt:    result.FinishedAt.UTC(),
	}
	if result.Upload != nil {
		run.UploadAttempts = len(result.Upload.Attempts)
	}

	return run, nil
}

type RunRepository struct {
	db *sqlx.DB
}

func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{
		db: db,
	}
}

func (r *RunRepository) Create(ctx context.Context, run Run) (Run, error) {
	res, err := r.db.ExecContext(
		ctx,
		runInsertQuery,
		run.RunId, run.BaseName, run.Status,
		run.FailedStage, run.ErrorKind, run.Error,
		run.Archive, run.ArtifactCount, run.TotalSize,
		run.UploadTarget, run.UploadAttempts,
		run.SummaryFile, run.Settings,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return run, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return run, err
	}

	run.Id = id

	return run, nil
}

// Record stores the finalized result of a pipeline run.
func (r *RunRepository) Record(ctx context.Context, job domain.Job, result *domain.Result) error {
	run, err := NewRun(job, result)
	if err != nil {
		return err
	}

	_, err = r.Create(ctx, run)
	return errors.Wrap(err, "unable to insert run")
}

func (r *RunRepository) FindRecent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []Run

	err := r.db.SelectContext(ctx, &runs, runSelectRecent, limit)
	if err != nil {
		return nil, err
	}

	return runs, nil
}

// FindLastSuccessful returns the latest successful run of every base name.
func (r *RunRepository) FindLastSuccessful(ctx context.Context) ([]Run, error) {
	var runs []Run

	err := r.db.SelectContext(ctx, &runs, runSelectLastSuccessful)
	if err != nil {
		return nil, err
	}

	return runs, nil
}
