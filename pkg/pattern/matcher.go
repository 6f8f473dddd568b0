package pattern

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/yurykabanov/archivist/pkg/domain"
)

// Rule is a single exclude pattern. A trailing slash turns it into a
// directory marker matching the directory and everything beneath it.
type Rule struct {
	Pattern string
	Dir     bool

	body     string
	hasSlash bool
	glob     glob.Glob
}

func ParseRule(raw string) (Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rule{}, domain.ConfigErrorf("empty exclude pattern")
	}

	body := strings.TrimLeft(filepath.ToSlash(raw), "/")
	isDir := strings.HasSuffix(body, "/")
	body = strings.TrimRight(body, "/")
	if body == "" {
		return Rule{}, domain.ConfigErrorf("exclude pattern %q matches nothing", raw)
	}

	g, err := glob.Compile(body)
	if err != nil {
		return Rule{}, &domain.Error{
			Kind:    domain.ErrConfig,
			Message: "malformed exclude pattern " + raw,
			Err:     err,
		}
	}

	return Rule{
		Pattern:  raw,
		Dir:      isDir,
		body:     body,
		hasSlash: strings.Contains(body, "/"),
		glob:     g,
	}, nil
}

func (r Rule) match(rootName, rel string, isDir bool) bool {
	if r.Dir {
		return r.matchDir(rootName, rel, isDir)
	}

	if r.glob.Match(path.Base(rel)) || r.glob.Match(rel) {
		return true
	}

	return rootName != "" && r.glob.Match(rootName+"/"+rel)
}

func (r Rule) matchDir(rootName, rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")
	dirs := parts[:len(parts)-1]
	if isDir {
		dirs = parts
	}

	if !r.hasSlash {
		for _, d := range dirs {
			if r.glob.Match(d) {
				return true
			}
		}
		return false
	}

	for i := 1; i <= len(dirs); i++ {
		prefix := strings.Join(dirs[:i], "/")
		if r.glob.Match(prefix) {
			return true
		}
		if rootName != "" && r.glob.Match(rootName+"/"+prefix) {
			return true
		}
	}

	return false
}

// Matcher evaluates a set of exclude rules; a path is excluded if any rule matches.
type Matcher struct {
	rules []Rule
}

// Compile parses every pattern up front so that a malformed rule is reported
// before any file is visited.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{}

	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}

		rule, err := ParseRule(p)
		if err != nil {
			return nil, err
		}

		m.rules = append(m.rules, rule)
	}

	return m, nil
}

func (m *Matcher) Len() int {
	return len(m.rules)
}

func (m *Matcher) Patterns() []string {
	patterns := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		patterns = append(patterns, r.Pattern)
	}
	return patterns
}

// Match reports whether rel (relative to the source root named root) is excluded.
func (m *Matcher) Match(root, rel string, isDir bool) bool {
	if m == nil {
		return false
	}

	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." {
		return false
	}

	rootName := ""
	if root != "" {
		rootName = filepath.Base(filepath.Clean(root))
	}

	for _, r := range m.rules {
		if r.match(rootName, rel, isDir) {
			return true
		}
	}

	return false
}

// ReadFile loads patterns from an exclude file: one per line, blank lines
// and lines starting with '#' are ignored.
func ReadFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrConfig, Message: "unable to read exclude file", Err: err}
	}
	defer f.Close()

	var patterns []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "unable to scan exclude file %s", name)
	}

	return patterns, nil
}
