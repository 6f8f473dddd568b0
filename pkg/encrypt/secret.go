package encrypt

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
)

// Terminal is the interactive side of secret acquisition.
type Terminal interface {
	Interactive() bool
	ReadSecret(prompt string) (string, error)
}

type stdinTerminal struct{}

func (stdinTerminal) Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (stdinTerminal) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return string(b), err
}

// SecretSource obtains the encryption secret for a run: an interactive
// prompt when a terminal is attached, the explicit override otherwise.
type SecretSource struct {
	logger   logrus.FieldLogger
	terminal Terminal
}

func NewSecretSource(logger logrus.FieldLogger) *SecretSource {
	return &SecretSource{logger: logger, terminal: stdinTerminal{}}
}

func (s *SecretSource) WithTerminal(t Terminal) *SecretSource {
	s.terminal = t
	return s
}

func (s *SecretSource) Acquire(ctx context.Context, job domain.Job) (string, error) {
	if !job.Encryption.Enabled() {
		return "", nil
	}

	logger := appcontext.LoggerFromContext(s.logger, appcontext.WithStage(ctx, string(domain.StageEncryption)))

	if job.Password != "" {
		logger.Warn("Using password passed on the command line or in the environment; it may be visible in the process list or shell history")
		return job.Password, nil
	}

	if s.terminal == nil || !s.terminal.Interactive() {
		return "", domain.NewError(domain.ErrNoSecretProvided, "no terminal attached and no --password given")
	}

	secret, err := s.terminal.ReadSecret("Archive password: ")
	if err != nil {
		return "", domain.WrapError(domain.ErrNoSecretProvided, err, "unable to read password")
	}
	if secret == "" {
		return "", domain.NewError(domain.ErrNoSecretProvided, "empty password")
	}

	confirm, err := s.terminal.ReadSecret("Repeat password: ")
	if err != nil {
		return "", domain.WrapError(domain.ErrNoSecretProvided, err, "unable to read password")
	}
	if confirm != secret {
		return "", domain.NewError(domain.ErrNoSecretProvided, "passwords do not match")
	}

	return secret, nil
}
