package pipelinefx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(Runner),
	fx.Provide(ArchiveBuilder),
	fx.Provide(SecretSource),
	fx.Provide(EncryptionStage),
	fx.Provide(SplitStage),
	fx.Provide(IntegrityStage),
	fx.Provide(S3ConfigProvider),
	fx.Provide(TransferManager),
	fx.Provide(Uploader),
	fx.Provide(Dispatcher),
	fx.Provide(Ledger),
	fx.Provide(Stages),
	fx.Provide(Orchestrator),
)
