package toolexec

import (
	"bytes"
	"context"
	"io/ioutil"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/archivist/pkg/domain"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func requireShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not installed")
	}
}

func TestExecRunner_MissingTool(t *testing.T) {
	err := New(discardLogger()).Run(context.Background(), Command{Name: "definitely-not-a-real-tool-42"})

	assert.True(t, domain.IsKind(err, domain.ErrToolNotFound))
}

func TestExecRunner_ExitCodeAndStderr(t *testing.T) {
	requireShell(t)

	err := New(discardLogger()).Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
	})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "broken", exitErr.Stderr)
}

func TestExecRunner_StdinStdout(t *testing.T) {
	requireShell(t)

	out := &bytes.Buffer{}
	err := New(discardLogger()).Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "cat"},
		Stdin:  strings.NewReader("payload"),
		Stdout: out,
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", out.String())
}

func TestExecRunner_Pipe(t *testing.T) {
	requireShell(t)

	out := &bytes.Buffer{}
	err := New(discardLogger()).Pipe(context.Background(),
		Command{Name: "sh", Args: []string{"-c", "printf 'a\\nb\\nc\\n'"}},
		Command{Name: "sh", Args: []string{"-c", "wc -l | tr -d ' '"}, Stdout: out},
	)

	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(out.String()))
}

func TestExecRunner_Cancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New(discardLogger()).Run(ctx, Command{Name: "sh", Args: []string{"-c", "exec sleep 5"}})

	assert.True(t, domain.IsKind(err, domain.ErrInterrupted))
}

func TestFail(t *testing.T) {
	assert.Nil(t, Fail(domain.ErrUploadFailed, nil, "x"))

	notFound := domain.NewError(domain.ErrToolNotFound, "rclone")
	assert.Equal(t, notFound, Fail(domain.ErrUploadFailed, notFound, "x"))

	err := Fail(domain.ErrEncryptionFailed, &ExitError{Name: "gpg", Code: 2, Stderr: "bad passphrase"}, "gpg failed")
	assert.True(t, domain.IsKind(err, domain.ErrEncryptionFailed))
	assert.Equal(t, "bad passphrase", domain.StderrOf(err))
}

func TestCommand_StringRedactsSecrets(t *testing.T) {
	cmd := Command{Name: "7z", Args: []string{"a", "-psecret", "out.7z"}}
	assert.Equal(t, "7z a -p*** out.7z", cmd.String())

	cmd = Command{Name: "zip", Args: []string{"-q", "-P", "secret", "out.zip", "-@"}}
	assert.Equal(t, "zip -q -P *** out.zip -@", cmd.String())
}
