package integrity

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/archivist/pkg/domain"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func setup(t *testing.T) (domain.Job, *domain.Result) {
	dest := t.TempDir()

	write := func(name, content string) domain.Artifact {
		p := filepath.Join(dest, name)
		require.NoError(t, ioutil.WriteFile(p, []byte(content), 0o644))
		return domain.Artifact{Path: p, Format: domain.FormatZip, Size: int64(len(content)), SplitPart: true}
	}

	job := domain.Job{
		Sources:      []string{"/srv/data"},
		DestDir:      dest,
		BaseName:     "backup_1",
		Format:       domain.FormatZip,
		Encryption:   domain.EncryptionZipAES,
		Password:     "top-secret",
		Excludes:     []string{"*.log"},
		MakeSummary:  true,
		MakeChecksum: true,
	}

	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result := domain.NewResult("run-1", false, started)
	result.Archive = filepath.Join(dest, "backup_1.zip")
	result.Artifacts = []domain.Artifact{write("backup_1.zip.part.000", "hello"), write("backup_1.zip.part.001", "!")}
	result.FileCount = 12

	return job, result
}

func TestStage_Finalize(t *testing.T) {
	job, result := setup(t)

	stage := NewStage(discardLogger())
	stage.now = func() time.Time { return time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC) }

	require.NoError(t, stage.Finalize(context.Background(), job, result))

	assert.Equal(t, filepath.Join(job.DestDir, "backup_1.zip.sha256"), result.ChecksumFile)
	assert.Equal(t, helloSHA256, result.Checksums["backup_1.zip.part.000"])

	b, err := ioutil.ReadFile(result.ChecksumFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), helloSHA256+"  backup_1.zip.part.000\n")
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^[0-9a-f]{64}  backup_1\.zip\.part\.001$`, lines[1])

	assert.Equal(t, filepath.Join(job.DestDir, "backup_1.summary.json"), result.SummaryFile)

	b, err = ioutil.ReadFile(result.SummaryFile)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "top-secret")

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &summary))
	assert.Equal(t, "run-1", summary["run_id"])
	assert.Equal(t, float64(6), summary["total_size"])
	assert.Equal(t, "6 B", summary["size"])
	assert.Equal(t, []interface{}{"/srv/data"}, summary["sources"])
	assert.Equal(t, []interface{}{"*.log"}, summary["excludes"])
	assert.Equal(t, float64(12), summary["source_files"])
	assert.Equal(t, "2024-01-01T00:05:00Z", summary["finished_at"])
	assert.Len(t, summary["artifacts"], 2)
	assert.Equal(t, "zip-aes", summary["settings"].(map[string]interface{})["encryption"])
}

func TestStage_Finalize_TogglesAreIndependent(t *testing.T) {
	job, result := setup(t)
	job.MakeChecksum = false

	require.NoError(t, NewStage(discardLogger()).Finalize(context.Background(), job, result))
	assert.Empty(t, result.ChecksumFile)
	assert.NotEmpty(t, result.SummaryFile)
	assert.NoFileExists(t, filepath.Join(job.DestDir, "backup_1.zip.sha256"))

	job, result = setup(t)
	job.MakeSummary = false

	require.NoError(t, NewStage(discardLogger()).Finalize(context.Background(), job, result))
	assert.NotEmpty(t, result.ChecksumFile)
	assert.Empty(t, result.SummaryFile)
	assert.Nil(t, result.Summary)
	assert.NoFileExists(t, job.SummaryPath())
}

func TestStage_Finalize_SeparateDirectories(t *testing.T) {
	job, result := setup(t)
	job.SummaryDir = filepath.Join(t.TempDir(), "summaries")
	job.ChecksumDir = filepath.Join(t.TempDir(), "sums")

	require.NoError(t, NewStage(discardLogger()).Finalize(context.Background(), job, result))

	assert.FileExists(t, filepath.Join(job.SummaryDir, "backup_1.summary.json"))
	assert.FileExists(t, filepath.Join(job.ChecksumDir, "backup_1.zip.sha256"))
}

func TestStage_Finalize_LeavesArtifactsUntouched(t *testing.T) {
	job, result := setup(t)

	require.NoError(t, NewStage(discardLogger()).Finalize(context.Background(), job, result))

	b, err := ioutil.ReadFile(result.Artifacts[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.Equal(t, 2, len(result.Artifacts))
}

func TestStage_Finalize_MissingArtifact(t *testing.T) {
	job, result := setup(t)
	result.Artifacts = append(result.Artifacts, domain.Artifact{Path: filepath.Join(job.DestDir, "gone")})

	assert.Error(t, NewStage(discardLogger()).Finalize(context.Background(), job, result))
}

func TestVerify(t *testing.T) {
	job, result := setup(t)
	require.NoError(t, NewStage(discardLogger()).Finalize(context.Background(), job, result))

	entries, err := Verify(context.Background(), result.ChecksumFile, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].OK())

	require.NoError(t, ioutil.WriteFile(result.Artifacts[1].Path, []byte("tampered"), 0o644))

	entries, err = Verify(context.Background(), result.ChecksumFile, "")
	assert.Error(t, err)
	assert.True(t, entries[0].OK())
	assert.False(t, entries[1].OK())
}
