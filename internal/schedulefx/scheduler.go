package schedulefx

import (
	"context"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/pipeline"
	"github.com/yurykabanov/archivist/pkg/schedule"
)

const (
	ConfigScheduleCron = "schedule.cron"
)

type SchedulerConfig struct {
	Spec string
}

func SchedulerConfigProvider(v *viper.Viper) (*SchedulerConfig, error) {
	config := &SchedulerConfig{
		Spec: v.GetString(ConfigScheduleCron),
	}

	if config.Spec == "" {
		return nil, domain.ConfigErrorf("no cron spec given")
	}
	if _, err := schedule.ParseSpec(config.Spec); err != nil {
		return nil, err
	}

	return config, nil
}

func NewCron() *cron.Cron {
	return cron.New()
}

func Scheduler(
	logger *logrus.Logger,
	config *SchedulerConfig,
	factory schedule.JobFactory,
	orchestrator *pipeline.Orchestrator,
	c *cron.Cron,
) *schedule.Scheduler {
	return schedule.NewScheduler(logger, config.Spec, factory, orchestrator, c)
}

func RunScheduler(lc fx.Lifecycle, scheduler *schedule.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := scheduler.Start(); err != nil {
				cancel()
				return err
			}

			go func() {
				scheduler.Run(ctx)
				close(done)
			}()

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			scheduler.Stop()
			cancel()

			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
