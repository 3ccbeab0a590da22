// Package ignore decides whether a file path is eligible for linting, given
// ignore glob patterns and an optional target-path glob.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// defaultIgnores always exclude version-control and dependency trees.
//
//nolint:gochecknoglobals // Read-only lookup table.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/.svn/**",
	"**/node_modules/**",
	"**/vendor/**",
}

type pattern struct {
	matcher  glob.Glob
	baseOnly glob.Glob // set for slash-free patterns, matched against the basename
	negate   bool
}

// Filter answers eligibility questions for absolute file paths. Patterns are
// compiled once per Configure call and cached until the next one; IsTarget is
// safe for concurrent use between reloads.
type Filter struct {
	mu         sync.RWMutex
	workspace  string
	target     glob.Glob
	ignoreFile string
	patterns   []pattern
}

// New creates a filter rooted at the workspace directory with only the
// default ignores active.
func New(workspace string) *Filter {
	f := &Filter{workspace: filepath.ToSlash(workspace)}
	f.patterns = compileDefaults()
	return f
}

// Configure reloads the filter: targetPath is a glob matched against paths
// relative to the workspace root (empty matches everything), and ignoreFile
// points to an ignore file whose patterns are resolved relative to its own
// directory. This is the sole reload trigger.
func (f *Filter) Configure(targetPath, ignoreFile string) error {
	var target glob.Glob
	if targetPath != "" {
		compiled, err := glob.Compile(targetPath, '/')
		if err != nil {
			return fmt.Errorf("compile target glob %q: %w", targetPath, err)
		}
		target = compiled
	}

	patterns := compileDefaults()
	if ignoreFile != "" {
		user, err := loadIgnoreFile(ignoreFile)
		if err != nil {
			return err
		}
		patterns = append(patterns, user...)
	}

	f.mu.Lock()
	f.target = target
	f.ignoreFile = ignoreFile
	f.patterns = patterns
	f.mu.Unlock()
	return nil
}

// IsTarget reports whether the absolute path is subject to linting. A path
// matching an ignore pattern is never a target; `!`-negated patterns
// re-include, with later patterns winning. Otherwise the path must match the
// target glob, if one is configured.
func (f *Filter) IsTarget(absPath string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path := filepath.ToSlash(absPath)
	base := filepath.Base(path)

	ignored := false
	for _, p := range f.patterns {
		if p.matcher.Match(path) || (p.baseOnly != nil && p.baseOnly.Match(base)) {
			ignored = !p.negate
		}
	}
	if ignored {
		return false
	}

	if f.target == nil {
		return true
	}
	rel, err := filepath.Rel(f.workspace, absPath)
	if err != nil {
		return false
	}
	return f.target.Match(filepath.ToSlash(rel))
}

func compileDefaults() []pattern {
	patterns := make([]pattern, 0, len(defaultIgnores))
	for _, raw := range defaultIgnores {
		patterns = append(patterns, pattern{matcher: glob.MustCompile(raw, '/')})
	}
	return patterns
}

// loadIgnoreFile parses a gitignore-style file: one glob per line, `#`
// comments, `!` negation. Patterns are anchored to the file's directory.
func loadIgnoreFile(path string) ([]pattern, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ignore file: %w", err)
	}
	defer file.Close()

	dir := filepath.ToSlash(filepath.Dir(path))
	var patterns []pattern

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		negate := false
		if strings.HasPrefix(line, "!") {
			negate = true
			line = strings.TrimSpace(line[1:])
			if line == "" {
				continue
			}
		}
		p, err := compileUserPattern(dir, line)
		if err != nil {
			return nil, err
		}
		p.negate = negate
		patterns = append(patterns, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", path, err)
	}
	return patterns, nil
}

// compileUserPattern resolves a pattern relative to the ignore file's
// directory. Slash-free patterns additionally match by basename at any
// depth, mirroring gitignore semantics.
func compileUserPattern(dir, raw string) (pattern, error) {
	anchored := dir + "/" + strings.TrimPrefix(raw, "/")
	matcher, err := glob.Compile(anchored, '/')
	if err != nil {
		return pattern{}, fmt.Errorf("compile ignore pattern %q: %w", raw, err)
	}
	p := pattern{matcher: matcher}
	if !strings.Contains(raw, "/") {
		baseOnly, err := glob.Compile(raw, '/')
		if err != nil {
			return pattern{}, fmt.Errorf("compile ignore pattern %q: %w", raw, err)
		}
		p.baseOnly = baseOnly
	}
	return p, nil
}
