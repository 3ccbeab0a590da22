package lsp

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/proselab/lintd/internal/logging"
	"github.com/proselab/lintd/pkg/lintconfig"
)

// watcher triggers reconfiguration when the lint config or ignore file
// changes on disk, for clients that don't forward file-watch events.
type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

func (s *Server) startWatcher() {
	if !s.watchFiles || s.watcher != nil || s.workspaceRoot == "" {
		return
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("file watcher unavailable", logging.FieldError, err)
		return
	}
	// Watch directories, not files: editors replace files on save and a
	// file-level watch would be dropped after the first rename.
	settings := s.currentSettings()
	dirs := map[string]struct{}{s.workspaceRoot: {}}
	if settings.ConfigPath != "" {
		dirs[filepath.Dir(settings.ConfigPath)] = struct{}{}
	}
	if settings.IgnoreFile != "" {
		dirs[filepath.Dir(settings.IgnoreFile)] = struct{}{}
	}
	for dir := range dirs {
		if err := fs.Add(dir); err != nil {
			s.logger.Debug("watch failed", logging.FieldPath, dir, logging.FieldError, err)
		}
	}

	w := &watcher{fs: fs, done: make(chan struct{})}
	s.watcher = w
	go s.watchLoop(w)
}

func (s *Server) watchLoop(w *watcher) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !s.isWatchedFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug("watched file changed", logging.FieldPath, event.Name)
			if s.coord != nil {
				if err := s.coord.Reconfigure(s.baseCtx, s.currentSettings()); err != nil {
					s.logger.Warn("reconfigure failed", logging.FieldError, err)
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			s.logger.Debug("watch error", logging.FieldError, err)
		}
	}
}

// isWatchedFile reports whether path is a config or ignore file the server
// cares about.
func (s *Server) isWatchedFile(path string) bool {
	settings := s.currentSettings()
	if path == settings.ConfigPath || path == settings.IgnoreFile {
		return true
	}
	base := filepath.Base(path)
	if base == ".lintdignore" {
		return true
	}
	for _, name := range lintconfig.FileNames {
		if base == name {
			return true
		}
	}
	return false
}

func (s *Server) restartWatcher() {
	s.stopWatcher()
	s.startWatcher()
}

func (s *Server) stopWatcher() {
	if s.watcher == nil {
		return
	}
	close(s.watcher.done)
	_ = s.watcher.fs.Close()
	s.watcher = nil
}
