package schedulefx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(SchedulerConfigProvider),
	fx.Provide(NewCron),
	fx.Provide(Scheduler),
	fx.Invoke(RunScheduler),
)
