package encrypt

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

const gpgExtension = ".gpg"

type Stage struct {
	logger logrus.FieldLogger
	runner toolexec.Runner
}

func NewStage(logger logrus.FieldLogger, runner toolexec.Runner) *Stage {
	return &Stage{logger: logger, runner: runner}
}

// Encrypt returns the artifact that carries the job's encryption. For
// creation-time modes the archive is only checked; gpg wraps it into X.gpg.
func (s *Stage) Encrypt(ctx context.Context, job domain.Job, artifact domain.Artifact, secret string) (domain.Artifact, error) {
	ctx = appcontext.WithArtifact(appcontext.WithStage(ctx, string(domain.StageEncryption)), artifact.Path)
	logger := appcontext.LoggerFromContext(s.logger, ctx)

	switch job.Encryption {
	case "", domain.EncryptionNone:
		return artifact, nil

	case domain.EncryptionZipAES, domain.EncryptionZipLegacy:
		if job.Encryption == domain.EncryptionZipLegacy {
			logger.Warn("ZipCrypto is a weak cipher; prefer zip-aes or gpg")
		}
		if artifact.Encryption != job.Encryption {
			return artifact, domain.NewError(domain.ErrEncryptionFailed, "archive was not encrypted by the archiver")
		}
		return artifact, nil

	case domain.EncryptionGPG:
		return s.gpg(ctx, logger, job, artifact, secret)
	}

	return artifact, domain.ConfigErrorf("unknown encryption mode %q", job.Encryption)
}

// Plan predicts the encrypted artifact without touching the disk.
func (s *Stage) Plan(job domain.Job, artifact domain.Artifact) domain.Artifact {
	if job.Encryption == domain.EncryptionGPG {
		artifact.Path += gpgExtension
		artifact.Encryption = domain.EncryptionGPG
	}
	return artifact
}

func (s *Stage) gpg(ctx context.Context, logger logrus.FieldLogger, job domain.Job, artifact domain.Artifact, secret string) (domain.Artifact, error) {
	if secret == "" {
		return artifact, domain.NewError(domain.ErrNoSecretProvided, "gpg encryption requires a passphrase")
	}

	output := artifact.Path + gpgExtension

	logger.WithField("output", output).Info("Encrypting archive with gpg")

	err := s.runner.Run(ctx, toolexec.Command{
		Name: "gpg",
		Args: []string{
			"--batch", "--yes",
			"--symmetric", "--cipher-algo", "AES256",
			"--pinentry-mode", "loopback",
			"--passphrase-fd", "0",
			"--output", output,
			artifact.Path,
		},
		Stdin: strings.NewReader(secret + "\n"),
	})
	if err != nil {
		_ = os.Remove(output)
		return artifact, toolexec.Fail(domain.ErrEncryptionFailed, err, "gpg failed")
	}

	info, err := os.Stat(output)
	if err != nil {
		return artifact, domain.WrapError(domain.ErrEncryptionFailed, err, "gpg produced no output")
	}

	if job.GPGKeepPlain {
		logger.Warn("Keeping unencrypted archive next to the encrypted one")
	} else if err := os.Remove(artifact.Path); err != nil {
		logger.WithError(err).Warn("Unable to remove unencrypted archive")
	}

	return domain.Artifact{
		Path:       output,
		Format:     artifact.Format,
		Size:       info.Size(),
		Encryption: domain.EncryptionGPG,
	}, nil
}
