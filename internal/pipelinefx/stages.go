package pipelinefx

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/yurykabanov/archivist/internal/configfx"
	"github.com/yurykabanov/archivist/internal/loggerfx"
	"github.com/yurykabanov/archivist/pkg/archive"
	"github.com/yurykabanov/archivist/pkg/encrypt"
	"github.com/yurykabanov/archivist/pkg/integrity"
	"github.com/yurykabanov/archivist/pkg/notify"
	"github.com/yurykabanov/archivist/pkg/pattern"
	"github.com/yurykabanov/archivist/pkg/pipeline"
	"github.com/yurykabanov/archivist/pkg/split"
	"github.com/yurykabanov/archivist/pkg/storage"
	"github.com/yurykabanov/archivist/pkg/toolexec"
	"github.com/yurykabanov/archivist/pkg/transfer"
)

const (
	ConfigS3Region          = "s3.region"
	ConfigS3Endpoint        = "s3.endpoint"
	ConfigS3AccessKeyID     = "s3.access_key_id"
	ConfigS3SecretAccessKey = "s3.secret_access_key"
	ConfigS3PathStyle       = "s3.path_style"

	ConfigTelegramURL = "telegram.url"
)

func Runner(logger *logrus.Logger) toolexec.Runner {
	return toolexec.New(logger)
}

func ArchiveBuilder(logger *logrus.Logger, runner toolexec.Runner) *archive.Builder {
	return archive.NewBuilder(logger, runner)
}

func SecretSource(logger *logrus.Logger) *encrypt.SecretSource {
	return encrypt.NewSecretSource(logger)
}

func EncryptionStage(logger *logrus.Logger, runner toolexec.Runner) *encrypt.Stage {
	return encrypt.NewStage(logger, runner)
}

func SplitStage(logger *logrus.Logger) *split.Stage {
	return split.NewStage(logger)
}

func IntegrityStage(logger *logrus.Logger) *integrity.Stage {
	return integrity.NewStage(logger)
}

func S3ConfigProvider(v *viper.Viper) transfer.S3Config {
	return transfer.S3Config{
		Region:          v.GetString(ConfigS3Region),
		Endpoint:        v.GetString(ConfigS3Endpoint),
		AccessKeyID:     v.GetString(ConfigS3AccessKeyID),
		SecretAccessKey: v.GetString(ConfigS3SecretAccessKey),
		PathStyle:       v.GetBool(ConfigS3PathStyle),
	}
}

func TransferManager(runner toolexec.Runner, config transfer.S3Config) *transfer.Manager {
	return transfer.NewDefaultManager(runner, transfer.NewS3Tool(config))
}

func Uploader(logger *logrus.Logger, manager *transfer.Manager) *transfer.Uploader {
	return transfer.NewUploader(logger, manager)
}

func Dispatcher(logger *logrus.Logger, runner toolexec.Runner, v *viper.Viper) *notify.Dispatcher {
	return notify.NewDispatcher(
		logger,
		runner,
		notify.NewTelegram(v.GetString(ConfigTelegramURL)),
		notify.NewEmail(runner),
		v.GetInt(configfx.ConfigNotifyConcurrency),
	)
}

// Ledger is nil when run history is disabled.
func Ledger(repo *storage.RunRepository) pipeline.Ledger {
	if repo == nil {
		return nil
	}
	return repo
}

func Stages(
	builder *archive.Builder,
	secrets *encrypt.SecretSource,
	encrypter *encrypt.Stage,
	splitter *split.Stage,
	finalizer *integrity.Stage,
	uploader *transfer.Uploader,
	dispatcher *notify.Dispatcher,
	ledger pipeline.Ledger,
	runLog *loggerfx.RunLog,
) pipeline.Stages {
	return pipeline.Stages{
		Collect:   pattern.Collect,
		Archiver:  builder,
		Secrets:   secrets,
		Encrypter: encrypter,
		Splitter:  splitter,
		Finalizer: finalizer,
		Uploader:  uploader,
		Notifier:  dispatcher,
		Ledger:    ledger,
		RunLog:    runLog,
	}
}

func Orchestrator(logger *logrus.Logger, stages pipeline.Stages) *pipeline.Orchestrator {
	return pipeline.New(logger, stages)
}
