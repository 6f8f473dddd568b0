package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/yurykabanov/archivist/pkg/toolexec"
)

type RcloneTool struct {
	runner toolexec.Runner
}

func (t *RcloneTool) Name() string { return "rclone" }

// Send copies the file and then compares sizes on both ends.
func (t *RcloneTool) Send(ctx context.Context, localPath, target string) error {
	err := t.runner.Run(ctx, toolexec.Command{Name: "rclone", Args: []string{"copy", localPath, target}})
	if err != nil {
		return err
	}

	return t.runner.Run(ctx, toolexec.Command{Name: "rclone", Args: []string{"check", localPath, target, "--size-only", "--one-way"}})
}

type AwsCliTool struct {
	runner toolexec.Runner
}

func (t *AwsCliTool) Name() string { return "aws" }

func (t *AwsCliTool) Send(ctx context.Context, localPath, target string) error {
	return t.runner.Run(ctx, toolexec.Command{Name: "aws", Args: []string{"s3", "cp", "--only-show-errors", localPath, target}})
}

type LftpTool struct {
	runner toolexec.Runner
}

func (t *LftpTool) Name() string { return "lftp" }

func (t *LftpTool) Send(ctx context.Context, localPath, target string) error {
	script := fmt.Sprintf("open %s; put -O . %s; bye", lftpQuote(target), lftpQuote(localPath))
	return t.runner.Run(ctx, toolexec.Command{Name: "lftp", Args: []string{"-c", script}})
}

func lftpQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ScpTool accepts sftp://host/path targets and plain scp destinations.
type ScpTool struct {
	runner toolexec.Runner
}

func (t *ScpTool) Name() string { return "scp" }

func (t *ScpTool) Send(ctx context.Context, localPath, target string) error {
	return t.runner.Run(ctx, toolexec.Command{Name: "scp", Args: []string{"-q", "-B", localPath, scpDestination(target)}})
}

func scpDestination(target string) string {
	rest := strings.TrimPrefix(target, "sftp://")
	if rest == target {
		return target
	}

	host, p := rest, ""
	if i := strings.Index(rest, "/"); i >= 0 {
		host, p = rest[:i], rest[i:]
	}
	return host + ":" + p
}
