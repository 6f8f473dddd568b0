package configfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ViperProvider),
)

// JobModule builds the backup job from the configuration.
var JobModule = fx.Options(
	fx.Provide(JobProvider),
	fx.Provide(JobFactoryProvider),
)
