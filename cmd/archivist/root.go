package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/yurykabanov/archivist/internal/configfx"
	"github.com/yurykabanov/archivist/internal/loggerfx"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/pipeline"
)

const (
	exitFailure     = 1
	exitConfigError = 2
)

const (
	startTimeout = 15 * time.Second
	stopGrace    = 15 * time.Second
)

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "archivist",
		Short:         "Archive, encrypt, split, checksum and upload backups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configfx.RegisterGlobalFlags(root.PersistentFlags())

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(
		newRunCommand(),
		newScheduleCommand(),
		newHistoryCommand(),
		newVerifyCommand(),
	)

	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	logger := loggerfx.Logger()

	switch {
	case domain.IsKind(err, domain.ErrConfig):
		logger.WithError(err).Error("Invalid configuration")
		return exitConfigError
	case isUsageError(err):
		logger.WithError(err).Error("Invalid arguments")
		return exitConfigError
	}

	logger.WithError(err).Error("Command failed")
	return exitFailure
}

func isUsageError(err error) bool {
	var e *usageError
	return errors.As(err, &e)
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// newApp assembles the fx application shared by every command.
func newApp(cmd *cobra.Command, args []string, opts ...fx.Option) *fx.App {
	logger := loggerfx.Logger()

	return fx.New(
		fx.StartTimeout(startTimeout),
		fx.StopTimeout(stopTimeout(cmd)),

		fx.WithLogger(func() fxevent.Logger {
			return &loggerfx.FxLogger{Logger: logger}
		}),

		fx.Supply(cmd.Flags()),
		fx.Supply(configfx.Args(args)),

		loggerfx.Module,
		configfx.Module,

		fx.Options(opts...),
	)
}

// stopTimeout leaves a run interrupted by shutdown enough time to notify.
func stopTimeout(cmd *cobra.Command) time.Duration {
	notifyTimeout := pipeline.DefaultNotifyTimeout
	if d, err := cmd.Flags().GetDuration("notify-timeout"); err == nil && d > 0 {
		notifyTimeout = d
	}
	return notifyTimeout + stopGrace
}

func startApp(app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()

	return app.Start(ctx)
}

func stopApp(app *fx.App) {
	ctx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()

	if err := app.Stop(ctx); err != nil {
		loggerfx.Logger().WithError(err).Warn("Unable to stop cleanly")
	}
}
