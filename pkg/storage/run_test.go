package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/util"
)

func openDatabase(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.MapperFunc(util.CamelToSnakeCase)

	require.NoError(t, Migrate(db, "archivist"))

	t.Cleanup(func() { db.Close() })

	return db
}

func result(id string, status domain.Status, started time.Time) *domain.Result {
	r := domain.NewResult(id, false, started)
	r.Status = status
	r.FinishedAt = started.Add(90 * time.Second)
	r.Archive = "/backups/" + id + ".zip"
	r.Artifacts = []domain.Artifact{{Path: r.Archive, Size: 1024}}
	return r
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openDatabase(t)

	assert.NoError(t, Migrate(db, "archivist"))
}

func TestRunRepository_Record(t *testing.T) {
	db := openDatabase(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	job := domain.Job{BaseName: "site", Format: domain.FormatZip, UploadTarget: "s3://bucket/site"}

	r := result("run-1", domain.StatusFailure, started)
	r.FailedStage = domain.StageUpload
	r.ErrorKind = domain.ErrUploadFailed
	r.Error = "0 of 1 artifacts uploaded after 3 attempts"
	r.Upload = &domain.UploadOutcome{Attempts: make([]domain.UploadAttempt, 3)}

	require.NoError(t, repo.Record(ctx, job, r))

	runs, err := repo.FindRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, "run-1", run.RunId)
	assert.Equal(t, "site", run.BaseName)
	assert.Equal(t, "failure", run.Status)
	assert.Equal(t, "UploadStage", run.FailedStage)
	assert.Equal(t, "UploadFailed", run.ErrorKind)
	assert.Equal(t, 1, run.ArtifactCount)
	assert.Equal(t, int64(1024), run.TotalSize)
	assert.Equal(t, 3, run.UploadAttempts)
	assert.Equal(t, "s3://bucket/site", run.UploadTarget)
	assert.Contains(t, run.Settings, `"format":"zip"`)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, 90*time.Second, run.Duration())
}

func TestRunRepository_Record_DuplicateRunId(t *testing.T) {
	repo := NewRunRepository(openDatabase(t))
	ctx := context.Background()
	job := domain.Job{BaseName: "site"}
	now := time.Now()

	require.NoError(t, repo.Record(ctx, job, result("same", domain.StatusSuccess, now)))
	assert.Error(t, repo.Record(ctx, job, result("same", domain.StatusSuccess, now)))
}

func TestRunRepository_FindRecent_Order(t *testing.T) {
	repo := NewRunRepository(openDatabase(t))
	ctx := context.Background()
	job := domain.Job{BaseName: "site"}
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Record(ctx, job, result(id, domain.StatusSuccess, now)))
	}

	runs, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunId)
	assert.Equal(t, "b", runs[1].RunId)
}

func TestRunRepository_FindLastSuccessful(t *testing.T) {
	repo := NewRunRepository(openDatabase(t))
	ctx := context.Background()
	now := time.Now()

	records := []struct {
		base   string
		id     string
		status domain.Status
	}{
		{"db", "db-1", domain.StatusSuccess},
		{"db", "db-2", domain.StatusSuccess},
		{"db", "db-3", domain.StatusFailure},
		{"site", "site-1", domain.StatusSuccess},
		{"logs", "logs-1", domain.StatusFailure},
	}
	for _, rec := range records {
		require.NoError(t, repo.Record(ctx, domain.Job{BaseName: rec.base}, result(rec.id, rec.status, now)))
	}

	runs, err := repo.FindLastSuccessful(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "db", runs[0].BaseName)
	assert.Equal(t, "db-2", runs[0].RunId)
	assert.Equal(t, "site", runs[1].BaseName)
	assert.Equal(t, "site-1", runs[1].RunId)
}
