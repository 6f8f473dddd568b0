package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/yurykabanov/archivist/internal/configfx"
	"github.com/yurykabanov/archivist/internal/pipelinefx"
	"github.com/yurykabanov/archivist/internal/sqlfx"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/pipeline"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [SOURCE...]",
		Short: "Run one backup and exit",
		Long: "Run one backup and exit.\n\n" +
			"Exit status is 0 on success, 1 on failure, 2 on a configuration error\n" +
			"and 130 when interrupted.",
		RunE: runOnce,
	}

	configfx.RegisterJobFlags(cmd.Flags())

	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
	var (
		orchestrator *pipeline.Orchestrator
		job          domain.Job
	)

	app := newApp(cmd, args,
		configfx.JobModule,
		sqlfx.Module,
		pipelinefx.Module,
		fx.Populate(&orchestrator, &job),
	)

	if err := startApp(app); err != nil {
		return err
	}
	defer stopApp(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orchestrator.Run(ctx, job)

	if code := pipeline.ExitCode(result); code != 0 {
		return &exitError{code: code}
	}

	return nil
}
