package pipeline

import (
	"context"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/pattern"
)

// run is the state threaded through the steps of one pipeline run.
type run struct {
	result *domain.Result
	files  domain.FileSet
	secret string
}

// Step is one stage of the pipeline. Exec performs it, Plan predicts its
// outcome for dry runs without touching the disk or invoking any tool.
type Step struct {
	Name    string
	State   domain.State
	Stage   domain.Stage
	Enabled func(job domain.Job) bool
	Exec    func(ctx context.Context, job domain.Job, r *run) error
	Plan    func(ctx context.Context, job domain.Job, r *run) error
}

func always(domain.Job) bool { return true }

func (o *Orchestrator) steps() []Step {
	return []Step{
		{
			Name:    "filter",
			State:   domain.StateFiltering,
			Stage:   domain.StagePatterns,
			Enabled: always,
			Exec:    o.filter,
			Plan:    o.filter,
		},
		{
			Name:    "secret",
			State:   domain.StateBuilding,
			Stage:   domain.StageEncryption,
			Enabled: func(job domain.Job) bool { return job.Encryption.Enabled() },
			Exec:    o.acquireSecret,
			Plan:    func(context.Context, domain.Job, *run) error { return nil },
		},
		{
			Name:    "build",
			State:   domain.StateBuilding,
			Stage:   domain.StageArchive,
			Enabled: always,
			Exec:    o.build,
			Plan:    o.planBuild,
		},
		{
			Name:    "encrypt",
			State:   domain.StateEncrypting,
			Stage:   domain.StageEncryption,
			Enabled: func(job domain.Job) bool { return job.Encryption.Enabled() },
			Exec:    o.encrypt,
			Plan:    o.planEncrypt,
		},
		{
			Name:    "split",
			State:   domain.StateSplitting,
			Stage:   domain.StageSplit,
			Enabled: func(job domain.Job) bool { return job.SplitBytes > 0 },
			Exec:    o.split,
			Plan:    o.planSplit,
		},
		{
			Name:    "finalize",
			State:   domain.StateFinalizing,
			Stage:   domain.StageIntegrity,
			Enabled: always,
			Exec:    o.finalize,
			Plan:    o.planFinalize,
		},
		{
			Name:    "upload",
			State:   domain.StateUploading,
			Stage:   domain.StageUpload,
			Enabled: func(job domain.Job) bool { return job.UploadTarget != "" },
			Exec:    o.upload,
			Plan:    o.planUpload,
		},
	}
}

func (o *Orchestrator) filter(ctx context.Context, job domain.Job, r *run) error {
	excluder := pattern.WithOutputs(job.Excluder, job)
	for _, source := range excluder.Shared(job.Sources) {
		appcontext.LoggerFromContext(o.logger, ctx).WithField("source", source).
			Warn("Source is also an output directory, earlier backups in it will be archived")
	}

	files, err := o.stages.Collect(ctx, o.logger, job.Sources, excluder)
	if err != nil {
		return err
	}

	r.files = files
	r.result.FileCount = files.Len()
	return nil
}

func (o *Orchestrator) acquireSecret(ctx context.Context, job domain.Job, r *run) error {
	secret, err := o.stages.Secrets.Acquire(ctx, job)
	if err != nil {
		return err
	}

	r.secret = secret
	return nil
}

func (o *Orchestrator) build(ctx context.Context, job domain.Job, r *run) error {
	artifact, err := o.stages.Archiver.Build(ctx, job, r.files, r.secret)
	if err != nil {
		return err
	}

	r.result.Archive = artifact.Path
	r.result.Artifacts = []domain.Artifact{artifact}
	return nil
}

func (o *Orchestrator) planBuild(ctx context.Context, job domain.Job, r *run) error {
	artifact, err := o.stages.Archiver.Plan(job, r.files)
	if err != nil {
		return err
	}

	r.result.Archive = artifact.Path
	r.result.Artifacts = []domain.Artifact{artifact}
	return nil
}

func (o *Orchestrator) encrypt(ctx context.Context, job domain.Job, r *run) error {
	artifact, err := o.stages.Encrypter.Encrypt(ctx, job, r.result.Artifacts[0], r.secret)
	if err != nil {
		return err
	}

	r.result.Archive = artifact.Path
	r.result.Artifacts = []domain.Artifact{artifact}
	return nil
}

func (o *Orchestrator) planEncrypt(ctx context.Context, job domain.Job, r *run) error {
	artifact := o.stages.Encrypter.Plan(job, r.result.Artifacts[0])

	r.result.Archive = artifact.Path
	r.result.Artifacts = []domain.Artifact{artifact}
	return nil
}

// split replaces the artifact set with the parts. On failure the splitter
// hands back the untouched original, which stays the artifact set.
func (o *Orchestrator) split(ctx context.Context, job domain.Job, r *run) error {
	parts, retained, err := o.stages.Splitter.Split(ctx, r.result.Artifacts[0], job.SplitBytes, job.SplitPolicy)

	r.result.Artifacts = parts
	r.result.RetainedOriginal = retained

	return err
}

func (o *Orchestrator) planSplit(ctx context.Context, job domain.Job, r *run) error {
	parts, retained := o.stages.Splitter.Plan(r.result.Artifacts[0], job.SplitBytes, job.SplitPolicy)

	r.result.Artifacts = parts
	r.result.RetainedOriginal = retained
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, job domain.Job, r *run) error {
	return o.stages.Finalizer.Finalize(ctx, job, r.result)
}

// planFinalize reports where checksum and summary would be written.
func (o *Orchestrator) planFinalize(ctx context.Context, job domain.Job, r *run) error {
	if job.MakeChecksum {
		r.result.ChecksumFile = job.ChecksumPath(r.result.Archive)
	}
	if job.MakeSummary {
		r.result.SummaryFile = job.SummaryPath()
	}
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, job domain.Job, r *run) error {
	outcome, err := o.stages.Uploader.Upload(ctx, r.result.Artifacts, job)
	r.result.Upload = &outcome

	return err
}

func (o *Orchestrator) planUpload(ctx context.Context, job domain.Job, r *run) error {
	outcome, err := o.stages.Uploader.Plan(r.result.Artifacts, job)
	r.result.Upload = &outcome

	return err
}
