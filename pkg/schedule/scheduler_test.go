package schedule

import (
	"context"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/archivist/pkg/domain"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

type fakeCron struct {
	schedule cron.Schedule
	job      cron.Job
	started  bool
	stopped  bool
}

func (c *fakeCron) Schedule(schedule cron.Schedule, cmd cron.Job) {
	c.schedule = schedule
	c.job = cmd
}

func (c *fakeCron) Start() { c.started = true }
func (c *fakeCron) Stop()  { c.stopped = true }

type blockingRunner struct {
	mu      sync.Mutex
	jobs    []domain.Job
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context, job domain.Job) *domain.Result {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()

	r.started <- struct{}{}
	<-r.release

	result := domain.NewResult("id", false, time.Now())
	result.Status = domain.StatusSuccess
	return result
}

func (r *blockingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func factory(t time.Time) (domain.Job, error) {
	return domain.Job{BaseName: "backup_" + t.Format("150405")}, nil
}

func TestParseSpec(t *testing.T) {
	for _, spec := range []string{"0 3 * * *", "@daily", "@every 1h", "0 30 2 * * *"} {
		_, err := ParseSpec(spec)
		assert.NoError(t, err, spec)
	}

	_, err := ParseSpec("every night")
	assert.True(t, domain.IsKind(err, domain.ErrConfig))
}

func TestScheduler_StartRegistersSchedule(t *testing.T) {
	c := &fakeCron{}
	s := NewScheduler(discardLogger(), "@hourly", factory, newBlockingRunner(), c)

	require.NoError(t, s.Start())
	assert.True(t, c.started)
	require.NotNil(t, c.job)

	c.job.Run()
	assert.Len(t, s.queue, 1)

	s.Stop()
	assert.True(t, c.stopped)
}

func TestScheduler_StartInvalidSpec(t *testing.T) {
	c := &fakeCron{}
	s := NewScheduler(discardLogger(), "nope", factory, newBlockingRunner(), c)

	assert.Error(t, s.Start())
	assert.False(t, c.started)
}

func TestScheduler_OverlappingTicksAreDropped(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(discardLogger(), "@hourly", factory, runner, &fakeCron{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	base := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)

	assert.True(t, s.dispatch(base))
	<-runner.started

	// one tick waits behind the running backup, the next is dropped
	assert.True(t, s.dispatch(base.Add(time.Hour)))
	assert.False(t, s.dispatch(base.Add(2*time.Hour)))

	runner.release <- struct{}{}
	<-runner.started
	runner.release <- struct{}{}

	cancel()
	<-done

	require.Equal(t, 2, runner.count())
	assert.Equal(t, "backup_010000", runner.jobs[0].BaseName)
	assert.Equal(t, "backup_020000", runner.jobs[1].BaseName)
}

func TestScheduler_FactoryErrorSkipsRun(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(discardLogger(), "@hourly", func(time.Time) (domain.Job, error) {
		return domain.Job{}, errors.New("no sources given")
	}, runner, &fakeCron{})

	s.handle(context.Background(), time.Now())

	assert.Equal(t, 0, runner.count())
}
