package configfx

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// legacyKeys maps the upper-case keys of KEY=VALUE config files onto
// configuration keys.
var legacyKeys = map[string]string{
	"dest_dir":         ConfigDest,
	"archive_format":   ConfigFormat,
	"out_name":         ConfigName,
	"zip_aes":          ConfigZipAES,
	"zip_encrypt":      ConfigZipLegacy,
	"use_gpg":          ConfigGPG,
	"zip_password":     ConfigPassword,
	"split_size":       ConfigSplitSize,
	"keep_after_split": ConfigKeepAfterSplit,
	"rm_after_split":   ConfigRmAfterSplit,
	"excludes":         ConfigExcludes,
	"exclude_file":     ConfigExcludeFrom,
	"sources":          ConfigSources,
	"upload_target":    ConfigUploadTarget,
	"upload_tool":      ConfigUploadTool,
	"upload_retry":     ConfigUploadRetry,
	"after_upload_rm":  ConfigAfterUploadRm,
	"dry_run":          ConfigDryRun,
	"plugins_dir":      ConfigPluginsDir,
	"notify":           ConfigNotify,
	"notify_config":    ConfigNotifyConfig,
	"summary_dir":      ConfigSummaryDir,
	"checksum_dir":     ConfigChecksumDir,
	"make_summary":     ConfigSummary,
	"make_checksum":    ConfigChecksum,
}

// legacyEnv are handed to built-in notifiers through the process environment.
var legacyEnv = []string{
	"TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID",
	"EMAIL_TO",
	"EMAIL_SUBJECT",
}

// applyLegacyKeys sets legacy values as defaults so that explicit flags
// still take precedence.
func applyLegacyKeys(logger logrus.FieldLogger, v *viper.Viper) {
	for legacy, key := range legacyKeys {
		if !v.InConfig(legacy) {
			continue
		}
		v.SetDefault(key, v.Get(legacy))
	}

	for _, name := range legacyEnv {
		key := strings.ToLower(name)
		if !v.InConfig(key) {
			continue
		}
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			logger.WithError(err).WithField("key", name).Warn("Unable to export config value")
		}
	}
}
