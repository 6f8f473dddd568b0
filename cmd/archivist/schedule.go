package main

import (
	"github.com/spf13/cobra"

	"github.com/yurykabanov/archivist/internal/configfx"
	"github.com/yurykabanov/archivist/internal/metricsfx"
	"github.com/yurykabanov/archivist/internal/pipelinefx"
	"github.com/yurykabanov/archivist/internal/schedulefx"
	"github.com/yurykabanov/archivist/internal/sqlfx"
)

func newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule --cron SPEC [SOURCE...]",
		Short: "Run backups on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd, args,
				configfx.JobModule,
				sqlfx.Module,
				pipelinefx.Module,
				schedulefx.Module,
				metricsfx.Module,
			)

			if err := app.Err(); err != nil {
				return err
			}

			// blocks until SIGINT or SIGTERM
			app.Run()

			return nil
		},
	}

	configfx.RegisterJobFlags(cmd.Flags())
	configfx.RegisterScheduleFlags(cmd.Flags())

	return cmd
}
