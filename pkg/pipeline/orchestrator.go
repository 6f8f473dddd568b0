package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/integrity"
	"github.com/yurykabanov/archivist/pkg/notify"
)

const DefaultNotifyTimeout = 30 * time.Second

// Orchestrator runs a job through the fixed sequence of steps and always
// ends with notification.
type Orchestrator struct {
	logger logrus.FieldLogger
	stages Stages

	now   func() time.Time
	newID func() string
}

func New(logger logrus.FieldLogger, stages Stages) *Orchestrator {
	return &Orchestrator{
		logger: logger,
		stages: stages,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run executes the job and returns its finalized result. Failures are
// recorded in the result, never returned.
func (o *Orchestrator) Run(ctx context.Context, job domain.Job) *domain.Result {
	result := domain.NewResult(o.newID(), job.DryRun, o.now())

	ctx = appcontext.WithRunId(ctx, result.RunID)
	logger := appcontext.LoggerFromContext(o.logger, ctx)

	if !job.DryRun && o.stages.RunLog != nil {
		if err := o.stages.RunLog.Attach(job.LogPath()); err != nil {
			logger.WithError(err).Warn("Unable to open run log file")
		} else {
			defer o.stages.RunLog.Detach()
		}
	}

	logger.WithFields(logrus.Fields{
		"sources": job.Sources,
		"dest":    job.DestDir,
		"name":    job.BaseName,
		"format":  job.Format,
		"dry_run": job.DryRun,
	}).Info("Starting backup run")

	plugins := notify.Resolve(job.Notify, job.PluginsDir)

	r := &run{result: result}
	o.fold(ctx, job, r)

	if result.Status != domain.StatusFailure {
		result.Status = domain.StatusSuccess
	}
	result.FinishedAt = o.now()

	o.summarize(ctx, job, result)

	result.State = domain.StateNotifying
	o.notify(ctx, job, result, plugins)

	if !job.DryRun && o.stages.Ledger != nil {
		if err := o.stages.Ledger.Record(context.Background(), job, result); err != nil {
			logger.WithError(err).Warn("Unable to record run in history")
		}
	}

	result.State = domain.StateDone

	entry := logger.WithFields(logrus.Fields{
		"status":    result.Status,
		"artifacts": len(result.Artifacts),
		"size":      domain.HumanSize(result.TotalSize()),
		"elapsed":   result.Elapsed().String(),
	})
	if result.Succeeded() {
		entry.Info("Backup run finished")
	} else {
		entry.WithFields(logrus.Fields{
			"failed_stage": result.FailedStage,
			"error_kind":   result.ErrorKind,
		}).Error("Backup run failed: " + result.Error)
	}

	return result
}

// fold runs the enabled steps in order and stops at the first failure. A
// cancellation seen between steps is charged to the step that just ran.
func (o *Orchestrator) fold(ctx context.Context, job domain.Job, r *run) {
	last := domain.StageNone

	for _, step := range o.steps() {
		if !step.Enabled(job) {
			continue
		}

		if err := ctx.Err(); err != nil {
			stage := last
			if stage == domain.StageNone {
				stage = step.Stage
			}
			r.result.Fail(stage, domain.WrapError(domain.ErrInterrupted, err, "run cancelled"))
			return
		}

		r.result.State = step.State

		exec := step.Exec
		if job.DryRun {
			exec = step.Plan
		}

		stepCtx := appcontext.WithStage(ctx, string(step.Stage))
		appcontext.LoggerFromContext(o.logger, stepCtx).WithField("step", step.Name).Debug("Entering step")

		if err := exec(stepCtx, job, r); err != nil {
			r.result.Fail(step.Stage, interrupted(ctx, err))
			return
		}

		last = step.Stage
	}
}

func (o *Orchestrator) summarize(ctx context.Context, job domain.Job, result *domain.Result) {
	if !job.MakeSummary || result.SummaryFile == "" {
		return
	}

	if job.DryRun {
		summary := integrity.BuildSummary(job, result, o.now())
		result.Summary = &summary
		return
	}

	if err := o.stages.Finalizer.WriteSummary(ctx, job, result); err != nil {
		appcontext.LoggerFromContext(o.logger, ctx).WithError(err).Warn("Unable to update summary")
	}
}

// notify dispatches the event. A cancelled run still notifies, under a fresh
// context bounded by the notify timeout.
func (o *Orchestrator) notify(ctx context.Context, job domain.Job, result *domain.Result, plugins []notify.Plugin) {
	if len(plugins) == 0 || o.stages.Notifier == nil {
		return
	}

	if ctx.Err() != nil {
		timeout := job.NotifyTimeout
		if timeout <= 0 {
			timeout = DefaultNotifyTimeout
		}

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(appcontext.WithRunId(context.Background(), result.RunID), timeout)
		defer cancel()
	}

	logFile := ""
	if !job.DryRun && o.stages.RunLog != nil {
		logFile = job.LogPath()
	}

	event := domain.NewEvent(job, result, logFile)
	result.Plugins = o.stages.Notifier.Dispatch(ctx, event, plugins, job.PluginTimeout)
}

func interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil && !domain.IsKind(err, domain.ErrInterrupted) {
		return &domain.Error{Kind: domain.ErrInterrupted, Message: "run cancelled", Err: err}
	}
	return err
}

// ExitCode maps a result to the process exit status.
func ExitCode(result *domain.Result) int {
	switch {
	case result == nil:
		return 1
	case result.Succeeded():
		return 0
	case result.ErrorKind == domain.ErrInterrupted:
		return 130
	case result.ErrorKind == domain.ErrConfig:
		return 2
	}
	return 1
}
