package configfx

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/yurykabanov/archivist/pkg/archive"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/pattern"
	"github.com/yurykabanov/archivist/pkg/pipeline"
	"github.com/yurykabanov/archivist/pkg/schedule"
	"github.com/yurykabanov/archivist/pkg/split"
	"github.com/yurykabanov/archivist/pkg/transfer"
)

// Args are the positional command line arguments, treated as extra sources.
type Args []string

func JobProvider(v *viper.Viper, args Args) (domain.Job, error) {
	return BuildJob(v, args, time.Now())
}

// JobFactoryProvider validates the configuration once and then builds a
// fresh job, with its own default name, for every scheduled run.
func JobFactoryProvider(v *viper.Viper, args Args) (schedule.JobFactory, error) {
	if _, err := BuildJob(v, args, time.Now()); err != nil {
		return nil, err
	}

	return func(now time.Time) (domain.Job, error) {
		return BuildJob(v, args, now)
	}, nil
}

// BuildJob validates the configuration and turns it into a job. Every
// problem is reported as a config error before anything runs.
func BuildJob(v *viper.Viper, args []string, now time.Time) (domain.Job, error) {
	var job domain.Job

	sources, err := absPaths(append(CommaList(v, ConfigSources), args...))
	if err != nil {
		return job, err
	}
	if len(sources) == 0 {
		return job, domain.ConfigErrorf("no sources given")
	}
	job.Sources = sources

	dest := v.GetString(ConfigDest)
	if dest == "" {
		dest, err = os.UserHomeDir()
		if err != nil {
			return job, &domain.Error{Kind: domain.ErrConfig, Message: "no destination given", Err: err}
		}
	}
	if job.DestDir, err = filepath.Abs(dest); err != nil {
		return job, &domain.Error{Kind: domain.ErrConfig, Message: "invalid destination", Err: err}
	}

	job.BaseName = strings.TrimSpace(v.GetString(ConfigName))
	if job.BaseName == "" {
		job.BaseName = "backup_" + now.Format("20060102_150405")
	}
	if strings.ContainsAny(job.BaseName, `/\`) {
		return job, domain.ConfigErrorf("archive name %q must not contain path separators", job.BaseName)
	}

	formatName := v.GetString(ConfigFormat)
	if formatName == "" {
		formatName = string(domain.FormatZip)
	}
	format, ok := domain.ParseFormat(strings.ToLower(formatName))
	if !ok {
		return job, domain.ConfigErrorf("unsupported archive format %q", formatName)
	}
	job.Format = format

	if job.Encryption, err = encryptionMode(v); err != nil {
		return job, err
	}
	if err = archive.CheckEncryption(job.Format, job.Encryption); err != nil {
		return job, err
	}
	job.Password = v.GetString(ConfigPassword)
	job.GPGKeepPlain = v.GetBool(ConfigGPGKeepPlain)

	if job.SplitBytes, err = split.ParseSize(v.GetString(ConfigSplitSize)); err != nil {
		return job, err
	}

	keep, remove := v.GetBool(ConfigKeepAfterSplit), v.GetBool(ConfigRmAfterSplit)
	switch {
	case keep && remove:
		return job, domain.ConfigErrorf("--keep-after-split and --rm-after-split are mutually exclusive")
	case keep:
		job.SplitPolicy = domain.SplitPolicyKeep
	case remove:
		job.SplitPolicy = domain.SplitPolicyRemove
	}

	if err = excludes(v, &job); err != nil {
		return job, err
	}

	job.UploadTarget = v.GetString(ConfigUploadTarget)
	job.UploadTool = v.GetString(ConfigUploadTool)
	if job.UploadTool == "" {
		job.UploadTool = transfer.ToolAuto
	}
	if !transfer.IsToolName(job.UploadTool) {
		return job, domain.ConfigErrorf("unsupported upload tool %q", job.UploadTool)
	}
	job.UploadMaxAttempts = v.GetInt(ConfigUploadRetry)
	if job.UploadMaxAttempts <= 0 {
		job.UploadMaxAttempts = transfer.DefaultMaxAttempts
	}
	job.UploadRetryDelay = v.GetDuration(ConfigUploadRetryDelay)
	if job.UploadRetryDelay < 0 {
		return job, domain.ConfigErrorf("upload retry delay must not be negative")
	}
	job.AfterUploadRemove = v.GetBool(ConfigAfterUploadRm)

	job.Notify = CommaList(v, ConfigNotify)
	job.NotifyConfig = v.GetString(ConfigNotifyConfig)
	job.PluginsDir = v.GetString(ConfigPluginsDir)
	job.NotifyTimeout = v.GetDuration(ConfigNotifyTimeout)
	if job.NotifyTimeout <= 0 {
		job.NotifyTimeout = pipeline.DefaultNotifyTimeout
	}
	job.PluginTimeout = v.GetDuration(ConfigPluginTimeout)

	job.MakeSummary = enabled(v, ConfigSummary, ConfigSummaryDisabled)
	job.MakeChecksum = enabled(v, ConfigChecksum, ConfigChecksumDisabled)
	job.SummaryDir = v.GetString(ConfigSummaryDir)
	job.ChecksumDir = v.GetString(ConfigChecksumDir)

	job.DryRun = v.GetBool(ConfigDryRun)

	return job, nil
}

func encryptionMode(v *viper.Viper) (domain.EncryptionMode, error) {
	modes := []struct {
		key  string
		mode domain.EncryptionMode
	}{
		{ConfigZipAES, domain.EncryptionZipAES},
		{ConfigZipLegacy, domain.EncryptionZipLegacy},
		{ConfigGPG, domain.EncryptionGPG},
	}

	mode := domain.EncryptionNone
	for _, m := range modes {
		if !v.GetBool(m.key) {
			continue
		}
		if mode != domain.EncryptionNone {
			return mode, domain.ConfigErrorf("only one of --zip-aes, --zip-encrypt and --gpg-encrypt may be given")
		}
		mode = m.mode
	}

	return mode, nil
}

func excludes(v *viper.Viper, job *domain.Job) error {
	patterns := CommaList(v, ConfigExcludes)

	if from := v.GetString(ConfigExcludeFrom); from != "" {
		more, err := pattern.ReadFile(from)
		if err != nil {
			return err
		}
		patterns = append(patterns, more...)
	}

	matcher, err := pattern.Compile(patterns)
	if err != nil {
		return err
	}

	job.Excludes = matcher.Patterns()
	job.Excluder = matcher

	return nil
}

// enabled is true unless the feature is switched off by either key.
func enabled(v *viper.Viper, key, disabledKey string) bool {
	if v.GetBool(disabledKey) {
		return false
	}
	if !v.IsSet(key) {
		return true
	}
	return v.GetBool(key)
}

// CommaList reads a list that may come as repeated flags, a config file
// array, or a single comma separated string.
func CommaList(v *viper.Viper, key string) []string {
	var raw []string

	switch value := v.Get(key).(type) {
	case nil:
		return nil
	case string:
		raw = []string{value}
	case []string:
		raw = value
	default:
		raw = cast.ToStringSlice(value)
	}

	var list []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
	}

	return list
}

func absPaths(paths []string) ([]string, error) {
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, &domain.Error{Kind: domain.ErrConfig, Message: "invalid source " + p, Err: err}
		}
		result = append(result, abs)
	}
	return result, nil
}
