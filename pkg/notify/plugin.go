package notify

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yurykabanov/archivist/pkg/domain"
)

type Kind string

const (
	KindTelegram   Kind = "telegram"
	KindEmail      Kind = "email"
	KindExecutable Kind = "executable"
	KindScript     Kind = "script"
)

var extensions = []string{"", ".py", ".sh"}

var interpreters = map[string]string{
	".py": "python3",
	".sh": "sh",
}

// Plugin is a notification target resolved once before dispatch. Err is set
// when the name could not be resolved.
type Plugin struct {
	Name        string
	Kind        Kind
	Path        string
	Interpreter string
	Err         error
}

// Resolve maps plugin names to built-ins or files. A name containing a slash
// is a path; anything else is looked up in dir. For each candidate the
// extensions "", ".py" and ".sh" are tried in order.
func Resolve(names []string, dir string) []Plugin {
	var plugins []Plugin

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		switch Kind(name) {
		case KindTelegram, KindEmail:
			plugins = append(plugins, Plugin{Name: name, Kind: Kind(name)})
			continue
		}

		plugins = append(plugins, resolveFile(name, dir))
	}

	return plugins
}

func resolveFile(name, dir string) Plugin {
	base := name
	if !strings.Contains(name, "/") {
		base = filepath.Join(dir, name)
	}

	for _, ext := range extensions {
		candidate := base + ext

		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		if info.Mode().Perm()&0o111 != 0 {
			return Plugin{Name: name, Kind: KindExecutable, Path: candidate}
		}

		if interpreter, ok := interpreters[filepath.Ext(candidate)]; ok {
			return Plugin{Name: name, Kind: KindScript, Path: candidate, Interpreter: interpreter}
		}
	}

	return Plugin{
		Name: name,
		Err:  domain.NewError(domain.ErrPluginNotFound, name+" (looked in "+dir+" with .py/.sh)"),
	}
}
