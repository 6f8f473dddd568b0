package configfx

import (
	"github.com/spf13/pflag"

	"github.com/yurykabanov/archivist/pkg/notify"
	"github.com/yurykabanov/archivist/pkg/pipeline"
	"github.com/yurykabanov/archivist/pkg/transfer"
)

const (
	ConfigFile = "config"

	ConfigLogLevel   = "log.level"
	ConfigLogFormat  = "log.format"
	ConfigLogFile    = "log.file"
	ConfigHistoryDSN = "history.dsn"

	ConfigSources = "sources"
	ConfigDest    = "dest"
	ConfigName    = "name"
	ConfigFormat  = "archive.format"

	ConfigZipAES       = "encryption.zip_aes"
	ConfigZipLegacy    = "encryption.zip_legacy"
	ConfigGPG          = "encryption.gpg"
	ConfigPassword     = "encryption.password"
	ConfigGPGKeepPlain = "encryption.gpg_keep_plain"

	ConfigSplitSize      = "split.size"
	ConfigKeepAfterSplit = "split.keep"
	ConfigRmAfterSplit   = "split.remove"

	ConfigExcludes    = "exclude.patterns"
	ConfigExcludeFrom = "exclude.from"

	ConfigUploadTarget     = "upload.target"
	ConfigUploadTool       = "upload.tool"
	ConfigUploadRetry      = "upload.retry"
	ConfigUploadRetryDelay = "upload.retry_delay"
	ConfigAfterUploadRm    = "upload.after_rm"

	ConfigNotify            = "notify"
	ConfigNotifyConfig      = "notification.config"
	ConfigPluginsDir        = "notification.plugins_dir"
	ConfigNotifyTimeout     = "notification.timeout"
	ConfigPluginTimeout     = "notification.plugin_timeout"
	ConfigNotifyConcurrency = "notification.concurrency"

	ConfigSummary         = "summary.enabled"
	ConfigSummaryDisabled = "summary.disabled"
	ConfigSummaryDir      = "summary.dir"

	ConfigChecksum         = "checksum.enabled"
	ConfigChecksumDisabled = "checksum.disabled"
	ConfigChecksumDir      = "checksum.dir"

	ConfigDryRun = "dry_run"

	ConfigScheduleCron  = "schedule.cron"
	ConfigServerAddress = "server.address"

	ConfigHistoryLimit = "history.limit"
)

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"config":     ConfigFile,
	"log-level":  ConfigLogLevel,
	"log-format": ConfigLogFormat,
	"log-file":   ConfigLogFile,
	"history-db": ConfigHistoryDSN,

	"source": ConfigSources,
	"dest":   ConfigDest,
	"name":   ConfigName,
	"format": ConfigFormat,

	"zip-aes":        ConfigZipAES,
	"zip-encrypt":    ConfigZipLegacy,
	"gpg-encrypt":    ConfigGPG,
	"password":       ConfigPassword,
	"gpg-keep-plain": ConfigGPGKeepPlain,

	"split":            ConfigSplitSize,
	"keep-after-split": ConfigKeepAfterSplit,
	"rm-after-split":   ConfigRmAfterSplit,

	"exclude":      ConfigExcludes,
	"exclude-from": ConfigExcludeFrom,

	"upload":             ConfigUploadTarget,
	"upload-tool":        ConfigUploadTool,
	"upload-retry":       ConfigUploadRetry,
	"upload-retry-delay": ConfigUploadRetryDelay,
	"after-upload-rm":    ConfigAfterUploadRm,

	"notify":         ConfigNotify,
	"notify-config":  ConfigNotifyConfig,
	"plugins-dir":    ConfigPluginsDir,
	"notify-timeout": ConfigNotifyTimeout,
	"plugin-timeout": ConfigPluginTimeout,

	"summary":      ConfigSummary,
	"no-summary":   ConfigSummaryDisabled,
	"summary-dir":  ConfigSummaryDir,
	"checksum":     ConfigChecksum,
	"no-checksum":  ConfigChecksumDisabled,
	"checksum-dir": ConfigChecksumDir,

	"dry-run": ConfigDryRun,

	"cron":   ConfigScheduleCron,
	"listen": ConfigServerAddress,

	"limit": ConfigHistoryLimit,
}

// RegisterGlobalFlags adds the flags shared by every command.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	// Config file flag
	fs.StringP("config", "c", "", "Config file (yaml, toml, json, or KEY=VALUE .conf/.env)")

	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.String("log-file", "", "Write the application log to a rotated file instead of stderr")
	fs.String("history-db", "", "SQLite DSN of the run history; empty disables history")
}

// RegisterJobFlags adds the flags describing a backup job.
func RegisterJobFlags(fs *pflag.FlagSet) {
	fs.StringSliceP("source", "s", nil, "Source file or directory (repeatable, comma separated)")
	fs.StringP("dest", "d", "", "Destination directory (default: home directory)")
	fs.StringP("name", "n", "", "Archive base name (default: backup_<timestamp>)")
	fs.StringP("format", "f", "zip", "Archive format: zip, tar, tgz, 7z")

	fs.Bool("zip-aes", false, "Encrypt with AES-256 inside the zip/7z container")
	fs.Bool("zip-encrypt", false, "Encrypt with legacy ZipCrypto (weak)")
	fs.Bool("gpg-encrypt", false, "Encrypt the finished archive with gpg --symmetric")
	fs.String("password", "", "Archive password (insecure: visible in process list)")
	fs.Bool("gpg-keep-plain", false, "Keep the unencrypted archive after gpg encryption")

	fs.String("split", "", "Split archives larger than SIZE into parts, e.g. 200m")
	fs.Bool("keep-after-split", false, "Keep the whole archive next to its parts")
	fs.Bool("rm-after-split", false, "Remove the whole archive after a successful split")

	fs.StringSliceP("exclude", "x", nil, "Exclude pattern (repeatable, comma separated)")
	fs.String("exclude-from", "", "File with exclude patterns, one per line")

	fs.String("upload", "", "Upload target, e.g. remote:path, s3://bucket/prefix, sftp://host/dir")
	fs.String("upload-tool", transfer.ToolAuto, "Upload tool: auto, rclone, aws, s3, lftp, scp")
	fs.Int("upload-retry", transfer.DefaultMaxAttempts, "Maximum upload attempts")
	fs.Duration("upload-retry-delay", transfer.DefaultRetryDelay, "Delay between upload attempts")
	fs.Bool("after-upload-rm", false, "Remove local artifacts after a complete upload")

	fs.StringSlice("notify", nil, "Notification plugins: telegram, email, a plugin name or path")
	fs.String("notify-config", "", "Opaque string passed to plugins as NOTIFY_CONFIG")
	fs.String("plugins-dir", "./plugins.d", "Directory searched for plugins given by name")
	fs.Duration("notify-timeout", pipeline.DefaultNotifyTimeout, "Time allowed for notification after an interrupted run")
	fs.Duration("plugin-timeout", notify.DefaultPluginTimeout, "Time allowed for a single plugin")

	fs.Bool("summary", true, "Write <name>.summary.json")
	fs.Bool("no-summary", false, "Do not write the summary")
	fs.String("summary-dir", "", "Directory for the summary (default: destination)")
	fs.Bool("checksum", true, "Write <archive>.sha256")
	fs.Bool("no-checksum", false, "Do not write checksums")
	fs.String("checksum-dir", "", "Directory for the checksum file (default: destination)")

	fs.Bool("dry-run", false, "Show what would be done without writing anything")
}

// RegisterScheduleFlags adds the flags of the schedule command.
func RegisterScheduleFlags(fs *pflag.FlagSet) {
	fs.String("cron", "", "Cron spec, e.g. \"0 3 * * *\" or @daily")
	fs.String("listen", "", "Address of the /metrics/runs HTTP server; empty disables it")
}

// RegisterHistoryFlags adds the flags of the history command.
func RegisterHistoryFlags(fs *pflag.FlagSet) {
	fs.IntP("limit", "l", 20, "Number of runs to show")
}
