package notify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

const (
	DefaultConcurrency   = 4
	DefaultPluginTimeout = 60 * time.Second
)

type sender interface {
	Send(ctx context.Context, event domain.Event) error
}

type Dispatcher struct {
	logger logrus.FieldLogger
	runner toolexec.Runner

	builtins    map[Kind]sender
	concurrency int
	environ     func() []string
}

func NewDispatcher(logger logrus.FieldLogger, runner toolexec.Runner, telegram *Telegram, email *Email, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	builtins := map[Kind]sender{}
	if telegram != nil {
		builtins[KindTelegram] = telegram
	}
	if email != nil {
		builtins[KindEmail] = email
	}

	return &Dispatcher{
		logger:      logger,
		runner:      runner,
		builtins:    builtins,
		concurrency: concurrency,
		environ:     os.Environ,
	}
}

// Dispatch delivers event to every plugin and returns one outcome per plugin,
// in plugin order. A failing, hanging or crashing plugin only affects its own
// outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event, plugins []Plugin, timeout time.Duration) []domain.PluginOutcome {
	if timeout <= 0 {
		timeout = DefaultPluginTimeout
	}

	ctx = appcontext.WithStage(ctx, string(domain.StageNotification))
	outcomes := make([]domain.PluginOutcome, len(plugins))
	env := d.env(event)

	g := &errgroup.Group{}
	g.SetLimit(d.concurrency)

	for i, p := range plugins {
		i, p := i, p
		g.Go(func() error {
			outcomes[i] = d.safeRun(ctx, p, event, env, timeout)
			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}

func (d *Dispatcher) safeRun(ctx context.Context, p Plugin, event domain.Event, env []string, timeout time.Duration) (outcome domain.PluginOutcome) {
	ctx = appcontext.WithPlugin(ctx, p.Name)
	logger := appcontext.LoggerFromContext(d.logger, ctx)

	started := time.Now()
	outcome = domain.PluginOutcome{Name: p.Name, Kind: string(p.Kind), Path: p.Path}

	defer func() {
		if r := recover(); r != nil {
			outcome.Error = fmt.Sprintf("plugin panicked: %v", r)
		}
		outcome.Duration = time.Since(started)

		if outcome.OK() {
			logger.WithField("duration", outcome.Duration).Info("Plugin notified")
		} else {
			logger.WithFields(logrus.Fields{
				"exit_code": outcome.ExitCode,
				"stderr":    outcome.Stderr,
			}).Warn("Plugin failed: " + outcome.Error)
		}
	}()

	if p.Err != nil {
		outcome.Error = p.Err.Error()
		return outcome
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.run(ctx, logger, p, event, env)
	if err == nil {
		return outcome
	}

	outcome.Error = err.Error()

	var exitErr *toolexec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.Code
		outcome.Stderr = exitErr.Stderr
	}
	if ctx.Err() == context.DeadlineExceeded {
		outcome.Error = fmt.Sprintf("plugin timed out after %s", timeout)
	}

	return outcome
}

func (d *Dispatcher) run(ctx context.Context, logger logrus.FieldLogger, p Plugin, event domain.Event, env []string) error {
	switch p.Kind {
	case KindTelegram, KindEmail:
		s := d.builtins[p.Kind]
		if s == nil {
			return errors.Errorf("built-in %s is not configured", p.Kind)
		}
		return s.Send(ctx, event)
	}

	cmd := toolexec.Command{Name: p.Path, Env: env}
	if p.Kind == KindScript {
		cmd = toolexec.Command{Name: p.Interpreter, Args: []string{p.Path}, Env: env}
	}

	stdout := &bytes.Buffer{}
	cmd.Stdout = stdout

	err := d.runner.Run(ctx, cmd)

	if out := strings.TrimSpace(stdout.String()); out != "" {
		logger.WithField("output", out).Debug("Plugin output")
	}

	return err
}

// env is the process environment overlaid with the event keys.
func (d *Dispatcher) env(event domain.Event) []string {
	keys := event.Env()

	var env []string
	for _, kv := range d.environ() {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}
		if _, overridden := keys[name]; !overridden {
			env = append(env, kv)
		}
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		env = append(env, k+"="+keys[k])
	}

	return env
}
