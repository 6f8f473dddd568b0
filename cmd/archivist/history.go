package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/archivist/internal/configfx"
	"github.com/yurykabanov/archivist/internal/sqlfx"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/storage"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				repo *storage.RunRepository
				v    *viper.Viper
			)

			app := newApp(cmd, args, sqlfx.Module, fx.Populate(&repo, &v))
			if err := startApp(app); err != nil {
				return err
			}
			defer stopApp(app)

			if repo == nil {
				return domain.ConfigErrorf("run history is disabled, set --history-db")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			runs, err := repo.FindRecent(ctx, v.GetInt(configfx.ConfigHistoryLimit))
			if err != nil {
				return err
			}

			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	configfx.RegisterHistoryFlags(cmd.Flags())

	return cmd
}

func printRuns(out io.Writer, runs []storage.Run) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "STARTED\tNAME\tSTATUS\tSIZE\tARTIFACTS\tDURATION\tERROR")
	for _, run := range runs {
		message := run.ErrorKind
		if run.FailedStage != "" {
			message = run.FailedStage + ": " + run.ErrorKind
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.BaseName,
			run.Status,
			domain.HumanSize(run.TotalSize),
			run.ArtifactCount,
			run.Duration().Round(time.Second),
			message,
		)
	}

	return w.Flush()
}
