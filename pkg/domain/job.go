package domain

import (
	"path/filepath"
	"time"
)

type Format string

const (
	FormatZip Format = "zip"
	FormatTar Format = "tar"
	FormatTgz Format = "tgz"
	Format7z  Format = "7z"
)

// Extension returns the file extension (with leading dot) used for archives of format f.
func (f Format) Extension() string {
	switch f {
	case FormatZip:
		return ".zip"
	case FormatTar:
		return ".tar"
	case FormatTgz:
		return ".tar.gz"
	case Format7z:
		return ".7z"
	}
	return ""
}

func ParseFormat(s string) (Format, bool) {
	switch s {
	case "zip":
		return FormatZip, true
	case "tar":
		return FormatTar, true
	case "tgz", "tar.gz":
		return FormatTgz, true
	case "7z":
		return Format7z, true
	}
	return "", false
}

type EncryptionMode string

const (
	EncryptionNone EncryptionMode = "none"

	// AES-256 embedded by the archiver at creation time (zip or 7z container)
	EncryptionZipAES EncryptionMode = "zip-aes"

	// ZipCrypto, weak; kept for compatibility with old unzip tools
	EncryptionZipLegacy EncryptionMode = "zip-legacy"

	// gpg --symmetric applied to the finished archive
	EncryptionGPG EncryptionMode = "gpg"
)

// AtCreation reports whether the mode is applied by the archiver itself
// rather than by a post-processing step.
func (m EncryptionMode) AtCreation() bool {
	return m == EncryptionZipAES || m == EncryptionZipLegacy
}

func (m EncryptionMode) Enabled() bool {
	return m != "" && m != EncryptionNone
}

type SplitPolicy int

const (
	// Neither keep nor remove was requested: the whole file is removed after
	// a clean split and survives otherwise.
	SplitPolicyDefault SplitPolicy = iota
	SplitPolicyKeep
	SplitPolicyRemove
)

// RemoveOriginal reports whether the pre-split file is removed once every part is committed.
func (p SplitPolicy) RemoveOriginal() bool {
	return p != SplitPolicyKeep
}

// Excluder decides whether a path found below a source root is left out of the archive.
type Excluder interface {
	Match(root, rel string, isDir bool) bool
}

// Job is the run-scoped configuration. It is built once from flags, config
// file and environment and passed by value to every stage.
type Job struct {
	Sources  []string
	DestDir  string
	BaseName string
	Format   Format

	Encryption   EncryptionMode
	Password     string // explicit non-interactive override, never logged
	GPGKeepPlain bool

	SplitBytes  int64
	SplitPolicy SplitPolicy

	Excludes []string
	Excluder Excluder

	UploadTarget      string
	UploadTool        string
	UploadMaxAttempts int
	UploadRetryDelay  time.Duration
	AfterUploadRemove bool

	Notify        []string
	PluginsDir    string
	NotifyConfig  string
	NotifyTimeout time.Duration
	PluginTimeout time.Duration

	MakeSummary  bool
	MakeChecksum bool
	SummaryDir   string
	ChecksumDir  string

	DryRun bool
}

func (j Job) ArchivePath() string {
	return filepath.Join(j.DestDir, j.BaseName+j.Format.Extension())
}

func (j Job) LogPath() string {
	return filepath.Join(j.DestDir, j.BaseName+".log")
}

func (j Job) SummaryPath() string {
	dir := j.SummaryDir
	if dir == "" {
		dir = j.DestDir
	}
	return filepath.Join(dir, j.BaseName+".summary.json")
}

// ChecksumPath is named after the primary archive, one line per artifact.
func (j Job) ChecksumPath(archive string) string {
	dir := j.ChecksumDir
	if dir == "" {
		dir = j.DestDir
	}
	return filepath.Join(dir, filepath.Base(archive)+".sha256")
}

// Settings is the non-secret part of the job, as recorded in summaries and the run ledger.
type Settings struct {
	Format            Format         `json:"format"`
	Encryption        EncryptionMode `json:"encryption"`
	SplitBytes        int64          `json:"split_bytes,omitempty"`
	KeepAfterSplit    bool           `json:"keep_after_split"`
	UploadTarget      string         `json:"upload_target,omitempty"`
	UploadTool        string         `json:"upload_tool,omitempty"`
	UploadMaxAttempts int            `json:"upload_max_attempts,omitempty"`
	AfterUploadRemove bool           `json:"after_upload_rm"`
	Notify            []string       `json:"notify,omitempty"`
	DryRun            bool           `json:"dry_run"`
}

func (j Job) Settings() Settings {
	return Settings{
		Format:            j.Format,
		Encryption:        j.Encryption,
		SplitBytes:        j.SplitBytes,
		KeepAfterSplit:    j.SplitPolicy == SplitPolicyKeep,
		UploadTarget:      j.UploadTarget,
		UploadTool:        j.UploadTool,
		UploadMaxAttempts: j.UploadMaxAttempts,
		AfterUploadRemove: j.AfterUploadRemove,
		Notify:            j.Notify,
		DryRun:            j.DryRun,
	}
}
