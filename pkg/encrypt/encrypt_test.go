package encrypt

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

// region runnerMock
type runnerMock struct {
	mock.Mock
}

func (m *runnerMock) LookPath(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

func (m *runnerMock) Run(ctx context.Context, cmd toolexec.Command) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *runnerMock) Pipe(ctx context.Context, producer, consumer toolexec.Command) error {
	args := m.Called(ctx, producer, consumer)
	return args.Error(0)
}

// endregion

// region terminalMock
type terminalMock struct {
	mock.Mock
}

func (m *terminalMock) Interactive() bool {
	return m.Called().Bool(0)
}

func (m *terminalMock) ReadSecret(prompt string) (string, error) {
	args := m.Called(prompt)
	return args.String(0), args.Error(1)
}

// endregion

func plainArchive(t *testing.T) domain.Artifact {
	p := filepath.Join(t.TempDir(), "backup.tar")
	require.NoError(t, ioutil.WriteFile(p, []byte("plain"), 0o644))

	return domain.Artifact{Path: p, Format: domain.FormatTar, Size: 5}
}

func gpgCommand(input string) interface{} {
	return mock.MatchedBy(func(cmd toolexec.Command) bool {
		return cmd.Name == "gpg" && cmd.Args[len(cmd.Args)-1] == input && cmd.Stdin != nil
	})
}

func writesOutput(args mock.Arguments) {
	cmd := args.Get(1).(toolexec.Command)
	for i, a := range cmd.Args {
		if a == "--output" {
			_ = ioutil.WriteFile(cmd.Args[i+1], []byte("encrypted!"), 0o644)
		}
	}
}

func TestStage_GPG_RemovesPlainByDefault(t *testing.T) {
	in := plainArchive(t)

	runner := &runnerMock{}
	runner.On("Run", mock.Anything, gpgCommand(in.Path)).Run(writesOutput).Return(nil).Once()

	out, err := NewStage(discardLogger(), runner).Encrypt(context.Background(), domain.Job{Encryption: domain.EncryptionGPG}, in, "pw")

	require.NoError(t, err)
	runner.AssertExpectations(t)

	assert.Equal(t, in.Path+".gpg", out.Path)
	assert.Equal(t, domain.EncryptionGPG, out.Encryption)
	assert.Equal(t, int64(10), out.Size)
	assert.NoFileExists(t, in.Path)
}

func TestStage_GPG_KeepPlain(t *testing.T) {
	in := plainArchive(t)

	runner := &runnerMock{}
	runner.On("Run", mock.Anything, gpgCommand(in.Path)).Run(writesOutput).Return(nil)

	job := domain.Job{Encryption: domain.EncryptionGPG, GPGKeepPlain: true}
	_, err := NewStage(discardLogger(), runner).Encrypt(context.Background(), job, in, "pw")

	require.NoError(t, err)
	assert.FileExists(t, in.Path)
	assert.FileExists(t, in.Path+".gpg")
}

func TestStage_GPG_Failure(t *testing.T) {
	in := plainArchive(t)

	runner := &runnerMock{}
	runner.On("Run", mock.Anything, gpgCommand(in.Path)).
		Run(writesOutput).
		Return(&toolexec.ExitError{Name: "gpg", Code: 2, Stderr: "gpg: encryption failed"})

	_, err := NewStage(discardLogger(), runner).Encrypt(context.Background(), domain.Job{Encryption: domain.EncryptionGPG}, in, "pw")

	assert.True(t, domain.IsKind(err, domain.ErrEncryptionFailed))
	assert.Equal(t, "gpg: encryption failed", domain.StderrOf(err))
	assert.FileExists(t, in.Path)
	assert.NoFileExists(t, in.Path+".gpg")
}

func TestStage_GPG_NoSecret(t *testing.T) {
	runner := &runnerMock{}

	_, err := NewStage(discardLogger(), runner).Encrypt(context.Background(), domain.Job{Encryption: domain.EncryptionGPG}, plainArchive(t), "")

	assert.True(t, domain.IsKind(err, domain.ErrNoSecretProvided))
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestStage_CreationTimeModes(t *testing.T) {
	runner := &runnerMock{}
	stage := NewStage(discardLogger(), runner)

	in := domain.Artifact{Path: "x.zip", Format: domain.FormatZip, Encryption: domain.EncryptionZipAES}
	out, err := stage.Encrypt(context.Background(), domain.Job{Encryption: domain.EncryptionZipAES}, in, "pw")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = stage.Encrypt(context.Background(), domain.Job{Encryption: domain.EncryptionZipLegacy}, domain.Artifact{Path: "y.zip"}, "pw")
	assert.True(t, domain.IsKind(err, domain.ErrEncryptionFailed))

	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestStage_Plan(t *testing.T) {
	stage := NewStage(discardLogger(), &runnerMock{})

	out := stage.Plan(domain.Job{Encryption: domain.EncryptionGPG}, domain.Artifact{Path: "/d/a.tar", Size: 7})
	assert.Equal(t, "/d/a.tar.gpg", out.Path)
	assert.True(t, out.Encrypted())

	out = stage.Plan(domain.Job{Encryption: domain.EncryptionNone}, domain.Artifact{Path: "/d/a.tar"})
	assert.Equal(t, "/d/a.tar", out.Path)
}

func TestSecretSource_Override(t *testing.T) {
	term := &terminalMock{}

	secret, err := NewSecretSource(discardLogger()).WithTerminal(term).
		Acquire(context.Background(), domain.Job{Encryption: domain.EncryptionGPG, Password: "pw"})

	require.NoError(t, err)
	assert.Equal(t, "pw", secret)
	term.AssertNotCalled(t, "Interactive")
}

func TestSecretSource_NoTerminal(t *testing.T) {
	term := &terminalMock{}
	term.On("Interactive").Return(false)

	_, err := NewSecretSource(discardLogger()).WithTerminal(term).
		Acquire(context.Background(), domain.Job{Encryption: domain.EncryptionZipAES})

	assert.True(t, domain.IsKind(err, domain.ErrNoSecretProvided))
}

func TestSecretSource_Prompt(t *testing.T) {
	term := &terminalMock{}
	term.On("Interactive").Return(true)
	term.On("ReadSecret", "Archive password: ").Return("s3cret", nil)
	term.On("ReadSecret", "Repeat password: ").Return("s3cret", nil)

	secret, err := NewSecretSource(discardLogger()).WithTerminal(term).
		Acquire(context.Background(), domain.Job{Encryption: domain.EncryptionZipAES})

	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
}

func TestSecretSource_PromptMismatch(t *testing.T) {
	term := &terminalMock{}
	term.On("Interactive").Return(true)
	term.On("ReadSecret", "Archive password: ").Return("one", nil)
	term.On("ReadSecret", "Repeat password: ").Return("two", nil)

	_, err := NewSecretSource(discardLogger()).WithTerminal(term).
		Acquire(context.Background(), domain.Job{Encryption: domain.EncryptionGPG})

	assert.True(t, domain.IsKind(err, domain.ErrNoSecretProvided))
}

func TestSecretSource_NotNeeded(t *testing.T) {
	secret, err := NewSecretSource(discardLogger()).WithTerminal(&terminalMock{}).
		Acquire(context.Background(), domain.Job{Encryption: domain.EncryptionNone})

	require.NoError(t, err)
	assert.Empty(t, secret)
}
