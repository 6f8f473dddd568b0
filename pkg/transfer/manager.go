package transfer

import (
	"context"
	"sort"
	"strings"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

const ToolAuto = "auto"

// ToolNames lists every value accepted as an upload tool name.
var ToolNames = []string{ToolAuto, "rclone", "aws", "s3", "lftp", "scp"}

func IsToolName(name string) bool {
	for _, n := range ToolNames {
		if n == name {
			return true
		}
	}
	return false
}

// Tool sends one local file to a remote target.
type Tool interface {
	Name() string
	Send(ctx context.Context, localPath, target string) error
}

// Manager maps upload tool names to their implementations.
type Manager struct {
	tools  map[string]Tool
	runner toolexec.Runner
}

func NewManager(runner toolexec.Runner, tools ...Tool) *Manager {
	m := &Manager{
		tools:  make(map[string]Tool, len(tools)),
		runner: runner,
	}
	for _, t := range tools {
		m.tools[t.Name()] = t
	}
	return m
}

// NewDefaultManager registers every command-line tool plus the native S3 client.
func NewDefaultManager(runner toolexec.Runner, s3 *S3Tool) *Manager {
	return NewManager(runner,
		&RcloneTool{runner: runner},
		&AwsCliTool{runner: runner},
		&LftpTool{runner: runner},
		&ScpTool{runner: runner},
		s3,
	)
}

func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.tools))
	for name := range m.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the tool for name, picking one by availability and target
// scheme when name is "auto" or empty.
func (m *Manager) Resolve(name, target string) (Tool, error) {
	if name == "" || name == ToolAuto {
		name = m.auto(target)
	}

	tool, ok := m.tools[name]
	if !ok {
		return nil, domain.ConfigErrorf("unsupported upload tool %q (available: %s)", name, strings.Join(m.Names(), ", "))
	}
	return tool, nil
}

func (m *Manager) auto(target string) string {
	isS3 := strings.HasPrefix(target, "s3://")

	switch {
	case m.installed("rclone"):
		return "rclone"
	case isS3 && m.installed("aws"):
		return "aws"
	case isS3 && m.registered("s3"):
		return "s3"
	case m.installed("lftp"):
		return "lftp"
	case strings.HasPrefix(target, "sftp://"):
		return "scp"
	}
	return "rclone"
}

func (m *Manager) installed(name string) bool {
	if !m.registered(name) {
		return false
	}
	_, err := m.runner.LookPath(name)
	return err == nil
}

func (m *Manager) registered(name string) bool {
	_, ok := m.tools[name]
	return ok
}
