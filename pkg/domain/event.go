package domain

import (
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	EventOnSuccess = "on_success"
	EventOnFailure = "on_failure"
)

// Event is the read-only view of a finished run handed to notification plugins.
type Event struct {
	Name         string
	Status       Status
	RunID        string
	SummaryFile  string
	ArchivePath  string
	Files        []string
	UploadTarget string
	LogFile      string
	NotifyConfig string
	OutputDir    string
	BaseName     string
	TotalSize    int64
	FailedStage  Stage
	Error        string
	DryRun       bool
}

func NewEvent(job Job, result *Result, logFile string) Event {
	name := EventOnSuccess
	if !result.Succeeded() {
		name = EventOnFailure
	}

	return Event{
		Name:         name,
		Status:       result.Status,
		RunID:        result.RunID,
		SummaryFile:  result.SummaryFile,
		ArchivePath:  result.Archive,
		Files:        ArtifactPaths(result.Artifacts),
		UploadTarget: job.UploadTarget,
		LogFile:      logFile,
		NotifyConfig: job.NotifyConfig,
		OutputDir:    job.DestDir,
		BaseName:     job.BaseName,
		TotalSize:    result.TotalSize(),
		FailedStage:  result.FailedStage,
		Error:        result.Error,
		DryRun:       result.DryRun,
	}
}

// Env serializes the event into the plugin environment contract.
func (e Event) Env() map[string]string {
	dryRun := "0"
	if e.DryRun {
		dryRun = "1"
	}

	return map[string]string{
		"EVENT":         e.Name,
		"STATUS":        string(e.Status),
		"SUMMARY_FILE":  e.SummaryFile,
		"ARCHIVE_PATH":  e.ArchivePath,
		"FILES":         strings.Join(e.Files, "\n"),
		"UPLOAD_TARGET": e.UploadTarget,
		"LOG_FILE":      e.LogFile,
		"NOTIFY_CONFIG": e.NotifyConfig,
		"OUTPUT_DIR":    e.OutputDir,
		"BASE_NAME":     e.BaseName,
		"TOTAL_SIZE":    HumanSize(e.TotalSize),
		"DRY_RUN":       dryRun,
		"RUN_ID":        e.RunID,
		"FAILED_STAGE":  string(e.FailedStage),
		"ERROR":         e.Error,
	}
}

// HumanSize renders a byte count with binary units, e.g. "450 MiB".
func HumanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
