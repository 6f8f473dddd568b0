package archive

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

type TarBackend struct {
	runner toolexec.Runner
}

func (b *TarBackend) Produce(ctx context.Context, req Request) error {
	return b.runner.Run(ctx, toolexec.Command{
		Name: "tar",
		Args: []string{"--no-recursion", "-cf", req.Dest, "-T", req.ListFile},
	})
}

// TgzBackend pipes tar through pigz when available, gzip otherwise, and
// tests the result with gzip -t.
type TgzBackend struct {
	runner toolexec.Runner
}

func (b *TgzBackend) Produce(ctx context.Context, req Request) (err error) {
	compressor := "gzip"
	if _, lerr := b.runner.LookPath("pigz"); lerr == nil {
		compressor = "pigz"
	}

	out, err := os.OpenFile(req.Dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "unable to create archive file")
	}

	err = b.runner.Pipe(ctx,
		toolexec.Command{Name: "tar", Args: []string{"--no-recursion", "-cf", "-", "-T", req.ListFile}},
		toolexec.Command{Name: compressor, Args: []string{"-c"}, Stdout: out},
	)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "unable to close archive file")
	}
	if err != nil {
		return err
	}

	return b.runner.Run(ctx, toolexec.Command{Name: "gzip", Args: []string{"-t", req.Dest}})
}

// ZipBackend uses Info-ZIP, except for AES which Info-ZIP cannot write; 7z
// produces the zip container then.
type ZipBackend struct {
	runner toolexec.Runner
}

func (b *ZipBackend) Produce(ctx context.Context, req Request) error {
	if req.Encryption == domain.EncryptionZipAES {
		return b.runner.Run(ctx, toolexec.Command{
			Name: "7z",
			Args: []string{"a", "-tzip", "-mem=AES256", "-p" + req.Secret, "-bd", "-y", req.Dest, "@" + req.ListFile},
		})
	}

	list, err := os.Open(req.ListFile)
	if err != nil {
		return errors.Wrap(err, "unable to open file list")
	}
	defer list.Close()

	args := []string{"-q"}
	if req.Encryption == domain.EncryptionZipLegacy {
		args = append(args, "-P", req.Secret)
	}
	args = append(args, req.Dest, "-@")

	if err := b.runner.Run(ctx, toolexec.Command{Name: "zip", Args: args, Stdin: list}); err != nil {
		return err
	}

	testArgs := []string{"-T", req.Dest}
	if req.Encryption == domain.EncryptionZipLegacy {
		testArgs = []string{"-T", "-P", req.Secret, req.Dest}
	}
	return b.runner.Run(ctx, toolexec.Command{Name: "zip", Args: testArgs})
}

type SevenZipBackend struct {
	runner toolexec.Runner
}

func (b *SevenZipBackend) Produce(ctx context.Context, req Request) error {
	args := []string{"a", "-t7z", "-bd", "-y"}
	if req.Encryption == domain.EncryptionZipAES {
		args = append(args, "-p"+req.Secret, "-mhe=on")
	}
	args = append(args, req.Dest, "@"+req.ListFile)

	return b.runner.Run(ctx, toolexec.Command{Name: "7z", Args: args})
}
