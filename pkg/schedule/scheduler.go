package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/pipeline"
)

// JobFactory builds the job for a run triggered at the given time.
type JobFactory func(time.Time) (domain.Job, error)

type runner interface {
	Run(ctx context.Context, job domain.Job) *domain.Result
}

type scheduler interface {
	Schedule(schedule cron.Schedule, cmd cron.Job)
	Start()
	Stop()
}

// Scheduler triggers pipeline runs on a cron schedule. Runs never overlap:
// a tick arriving while a run is in progress is queued, and further ticks
// are dropped until the queue drains.
type Scheduler struct {
	logger logrus.FieldLogger

	spec    string
	factory JobFactory
	runner  runner
	cron    scheduler

	queue chan time.Time
	now   func() time.Time
}

func NewScheduler(
	logger logrus.FieldLogger,
	spec string,
	factory JobFactory,
	runner runner,
	cron scheduler,
) *Scheduler {
	return &Scheduler{
		logger:  logger,
		spec:    spec,
		factory: factory,
		runner:  runner,
		cron:    cron,
		queue:   make(chan time.Time, 1),
		now:     time.Now,
	}
}

// ParseSpec accepts the standard five field format and descriptors such as
// "@daily", falling back to the six field format with seconds.
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err == nil {
		return schedule, nil
	}

	schedule, err = cron.Parse(spec)
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrConfig, Message: "invalid cron spec " + spec, Err: err}
	}

	return schedule, nil
}

// Start registers the schedule and starts the cron.
func (s *Scheduler) Start() error {
	schedule, err := ParseSpec(s.spec)
	if err != nil {
		return err
	}

	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.dispatch(s.now())
	}))

	s.logger.WithField("spec", s.spec).Debug("Starting cron")
	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) dispatch(t time.Time) bool {
	fields := logrus.Fields{"spec": s.spec, "triggered_at": t}

	select {
	case s.queue <- t:
		s.logger.WithFields(fields).Info("Dispatched new backup")
		return true
	default:
		s.logger.WithFields(fields).Warn("Unable to dispatch new backup")
		return false
	}
}

// Run handles dispatched runs one at a time until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.handle(ctx, t)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, t time.Time) {
	logger := s.logger.WithField("triggered_at", t)

	job, err := s.factory(t)
	if err != nil {
		logger.WithError(errors.Wrap(err, "unable to build job")).Error("Skipping scheduled backup")
		return
	}

	result := s.runner.Run(ctx, job)

	logger.WithFields(logrus.Fields{
		"run_id":    result.RunID,
		"status":    result.Status,
		"exit_code": pipeline.ExitCode(result),
	}).Info("Scheduled backup handled")
}
