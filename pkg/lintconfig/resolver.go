// Package lintconfig locates and parses the active lint configuration file.
package lintconfig

import (
	"os"
	"path/filepath"
)

// FileNames are the recognized configuration file names, in order of
// preference.
//
//nolint:gochecknoglobals // Read-only lookup table.
var FileNames = []string{
	".lintdrc",
	".lintdrc.json",
	".lintdrc.yml",
	".lintdrc.yaml",
	".lintdrc.toml",
}

// Resolver finds the active configuration file. Find is deliberately
// uncached: it runs fresh on every validation so a newly created config file
// is picked up without a reload.
type Resolver struct {
	// Workspace is the workspace root searched first.
	Workspace string

	// Explicit is an optional user-configured path tried second.
	Explicit string

	// Home overrides the user home directory for the third strategy.
	// Empty means os.UserHomeDir.
	Home string

	// OnMissing, if non-nil, is the no-configuration signal, raised exactly
	// once per Find call that comes up empty.
	OnMissing func()
}

// Find tries each search strategy in strict order and returns the first
// match, or "" when no configuration exists anywhere.
func (r *Resolver) Find() string {
	if path := searchDir(r.Workspace); path != "" {
		return path
	}
	if r.Explicit != "" && fileExists(r.Explicit) {
		return r.Explicit
	}
	home := r.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if path := searchDir(home); path != "" {
		return path
	}
	if r.OnMissing != nil {
		r.OnMissing()
	}
	return ""
}

// searchDir looks for any recognized config file name in dir.
func searchDir(dir string) string {
	if dir == "" {
		return ""
	}
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
