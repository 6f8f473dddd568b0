package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/notify"
)

type Collector func(ctx context.Context, logger logrus.FieldLogger, sources []string, excluder domain.Excluder) (domain.FileSet, error)

type Archiver interface {
	Build(ctx context.Context, job domain.Job, files domain.FileSet, secret string) (domain.Artifact, error)
	Plan(job domain.Job, files domain.FileSet) (domain.Artifact, error)
}

type Encrypter interface {
	Encrypt(ctx context.Context, job domain.Job, artifact domain.Artifact, secret string) (domain.Artifact, error)
	Plan(job domain.Job, artifact domain.Artifact) domain.Artifact
}

type SecretSource interface {
	Acquire(ctx context.Context, job domain.Job) (string, error)
}

type Splitter interface {
	Split(ctx context.Context, artifact domain.Artifact, threshold int64, policy domain.SplitPolicy) ([]domain.Artifact, string, error)
	Plan(artifact domain.Artifact, threshold int64, policy domain.SplitPolicy) ([]domain.Artifact, string)
}

type Finalizer interface {
	Finalize(ctx context.Context, job domain.Job, result *domain.Result) error
	WriteSummary(ctx context.Context, job domain.Job, result *domain.Result) error
}

type Uploader interface {
	Upload(ctx context.Context, artifacts []domain.Artifact, job domain.Job) (domain.UploadOutcome, error)
	Plan(artifacts []domain.Artifact, job domain.Job) (domain.UploadOutcome, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, event domain.Event, plugins []notify.Plugin, timeout time.Duration) []domain.PluginOutcome
}

// Ledger keeps the history of finished runs.
type Ledger interface {
	Record(ctx context.Context, job domain.Job, result *domain.Result) error
}

// RunLog mirrors log output into the per-run log file while attached.
type RunLog interface {
	Attach(path string) error
	Detach()
}

// Stages bundles the components a pipeline is assembled from. Ledger and
// RunLog are optional.
type Stages struct {
	Collect   Collector
	Archiver  Archiver
	Secrets   SecretSource
	Encrypter Encrypter
	Splitter  Splitter
	Finalizer Finalizer
	Uploader  Uploader
	Notifier  Notifier
	Ledger    Ledger
	RunLog    RunLog
}
