package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
)

const (
	maxStderr = 4096
	waitDelay = 5 * time.Second
)

// Command describes one blocking child process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(redact(c.Args), " "))
}

// ExitError is returned when the tool ran but exited with a non-zero code.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, cmd Command) error
	// Pipe runs producer | consumer and waits for both.
	Pipe(ctx context.Context, producer, consumer Command) error
}

type ExecRunner struct {
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", &domain.Error{Kind: domain.ErrToolNotFound, Message: name, Err: err}
	}
	return p, nil
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c, stderr, err := r.prepare(ctx, cmd)
	if err != nil {
		return err
	}

	appcontext.LoggerFromContext(r.logger, ctx).WithField("command", cmd.String()).Debug("Running tool")

	return r.result(ctx, cmd.Name, c.Run(), stderr)
}

func (r *ExecRunner) Pipe(ctx context.Context, producer, consumer Command) error {
	p, pStderr, err := r.prepare(ctx, producer)
	if err != nil {
		return err
	}
	c, cStderr, err := r.prepare(ctx, consumer)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	p.Stdout = pw
	c.Stdin = pr

	appcontext.LoggerFromContext(r.logger, ctx).
		WithField("command", producer.String()+" | "+consumer.String()).
		Debug("Running tool pipeline")

	if err := c.Start(); err != nil {
		return r.result(ctx, consumer.Name, err, cStderr)
	}

	pErr := p.Run()
	_ = pw.CloseWithError(pErr)

	cErr := c.Wait()
	_ = pr.Close()

	if err := r.result(ctx, producer.Name, pErr, pStderr); err != nil {
		return err
	}
	return r.result(ctx, consumer.Name, cErr, cStderr)
}

func (r *ExecRunner) prepare(ctx context.Context, cmd Command) (*exec.Cmd, *bytes.Buffer, error) {
	path, err := r.LookPath(cmd.Name)
	if err != nil {
		return nil, nil, err
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout

	stderr := &bytes.Buffer{}
	c.Stderr = stderr

	// grandchildren may hold the stderr pipe open after the tool is killed
	c.WaitDelay = waitDelay

	return c, stderr, nil
}

func (r *ExecRunner) result(ctx context.Context, name string, err error, stderr *bytes.Buffer) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return &domain.Error{Kind: domain.ErrInterrupted, Message: name + " terminated", Err: ctx.Err()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Name: name, Code: exitErr.ExitCode(), Stderr: tail(stderr)}
	}

	return errors.Wrapf(err, "unable to run %s", name)
}

// Fail converts a runner error into a stage error of the given kind. Missing
// tools and interruptions keep their own kind.
func Fail(kind domain.ErrorKind, err error, message string) error {
	if err == nil {
		return nil
	}

	switch domain.KindOf(err) {
	case domain.ErrToolNotFound, domain.ErrInterrupted:
		return err
	}

	e := &domain.Error{Kind: kind, Message: message, Err: err}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		e.Stderr = exitErr.Stderr
	}

	return e
}

func tail(b *bytes.Buffer) string {
	if b == nil {
		return ""
	}
	s := strings.TrimSpace(b.String())
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}

// redact hides inline secrets (7z -pSECRET, zip -P SECRET) in logged command lines.
func redact(args []string) []string {
	out := make([]string, len(args))
	hideNext := false

	for i, a := range args {
		switch {
		case hideNext:
			out[i] = "***"
			hideNext = false
		case a == "-P" || a == "--password":
			out[i] = a
			hideNext = true
		case strings.HasPrefix(a, "-p") && len(a) > 2:
			out[i] = "-p***"
		default:
			out[i] = a
		}
	}

	return out
}
