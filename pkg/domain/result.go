package domain

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// State is the position of a run in the pipeline state machine.
type State string

const (
	StateInit       State = "Init"
	StateFiltering  State = "Filtering"
	StateBuilding   State = "Building"
	StateEncrypting State = "Encrypting"
	StateSplitting  State = "Splitting"
	StateFinalizing State = "Finalizing"
	StateUploading  State = "Uploading"
	StateNotifying  State = "Notifying"
	StateDone       State = "Done"
)

// Stage names the component responsible for a failure.
type Stage string

const (
	StageNone         Stage = ""
	StagePatterns     Stage = "PatternMatcher"
	StageArchive      Stage = "ArchiveBuilder"
	StageEncryption   Stage = "EncryptionStage"
	StageSplit        Stage = "SplitStage"
	StageIntegrity    Stage = "IntegrityStage"
	StageUpload       Stage = "UploadStage"
	StageNotification Stage = "NotificationDispatcher"
)

type UploadAttempt struct {
	Number  int       `json:"number"`
	Target  string    `json:"target"`
	Tool    string    `json:"tool"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

type UploadOutcome struct {
	Target   string          `json:"target"`
	Tool     string          `json:"tool"`
	Attempts []UploadAttempt `json:"attempts"`
	Uploaded []string        `json:"uploaded"`
	Pending  []string        `json:"pending,omitempty"`
	Removed  bool            `json:"local_removed"`
}

func (o UploadOutcome) Complete() bool {
	return len(o.Pending) == 0
}

type PluginOutcome struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Path     string        `json:"path,omitempty"`
	ExitCode int           `json:"exit_code"`
	Stderr   string        `json:"stderr,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (o PluginOutcome) OK() bool {
	return o.Error == "" && o.ExitCode == 0
}

// Summary is the structured record persisted as <base>.summary.json.
type Summary struct {
	RunID            string            `json:"run_id"`
	Status           Status            `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	OutputDir        string            `json:"output"`
	Archive          string            `json:"archive"`
	TotalSize        int64             `json:"total_size"`
	TotalSizeHuman   string            `json:"size"`
	Artifacts        []Artifact        `json:"artifacts"`
	Files            []string          `json:"files"`
	Checksums        map[string]string `json:"checksums,omitempty"`
	RetainedOriginal string            `json:"retained_original,omitempty"`
	Sources          []string          `json:"sources"`
	Excludes         []string          `json:"excludes"`
	Settings         Settings          `json:"settings"`
	FileCount        int               `json:"source_files"`
	Upload           *UploadOutcome    `json:"upload,omitempty"`
	FailedStage      Stage             `json:"failed_stage,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// Result is the outcome record of one run. It is created pending, filled in
// stage by stage, and finalized once before notification; plugins never see
// or modify it directly.
type Result struct {
	RunID  string
	State  State
	Status Status

	FailedStage Stage
	ErrorKind   ErrorKind
	Error       string
	Stderr      string

	// archive as produced by the builder, after encryption
	Archive   string
	Artifacts []Artifact

	// pre-split file left on disk next to its parts
	RetainedOriginal string

	Checksums    map[string]string
	ChecksumFile string
	SummaryFile  string
	Summary      *Summary

	Upload  *UploadOutcome
	Plugins []PluginOutcome

	FileCount  int
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
}

func NewResult(runID string, dryRun bool, now time.Time) *Result {
	return &Result{
		RunID:     runID,
		State:     StateInit,
		Status:    StatusPending,
		Checksums: map[string]string{},
		StartedAt: now,
		DryRun:    dryRun,
	}
}

// Fail records the first failure; later failures do not overwrite it.
func (r *Result) Fail(stage Stage, err error) {
	if r.Status == StatusFailure {
		return
	}
	r.Status = StatusFailure
	r.FailedStage = stage
	r.ErrorKind = KindOf(err)
	r.Stderr = StderrOf(err)
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *Result) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

func (r *Result) TotalSize() int64 {
	return TotalSize(r.Artifacts)
}
