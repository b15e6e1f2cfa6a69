package provision

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/parapet/portal/pkg/observability"
)

// ArchiveState tracks which configured layout archives are currently usable.
// A configured-but-missing archive is logged once at startup and the archive
// path disabled, leaving declarative synthesis as the fallback. The watcher
// re-validates when the file appears, changes, or is removed, so fixing the
// file does not require a restart.
type ArchiveState struct {
	logger *observability.Logger

	mu    sync.RWMutex
	valid map[string]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewArchiveState validates the given archive paths. Empty paths are ignored.
func NewArchiveState(logger *observability.Logger, paths ...string) *ArchiveState {
	s := &ArchiveState{
		logger: logger,
		valid:  make(map[string]bool),
		done:   make(chan struct{}),
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		ok := fileExists(p)
		s.valid[p] = ok
		if !ok {
			logger.WithField("path", p).Error("configured layout archive missing, archive provisioning disabled for it")
		}
	}
	return s
}

// Usable reports whether the archive at path was configured and currently
// exists. An empty path is never usable.
func (s *ArchiveState) Usable(path string) bool {
	if path == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid[path]
}

// Watch starts a filesystem watcher over the parent directories of the
// configured archives and re-validates on create, write and remove events.
func (s *ArchiveState) Watch() error {
	s.mu.RLock()
	paths := make([]string, 0, len(s.valid))
	for p := range s.valid {
		paths = append(paths, p)
	}
	s.mu.RUnlock()
	if len(paths) == 0 {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = w

	dirs := make(map[string]bool)
	for _, p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			s.logger.WithError(err).WithField("dir", d).Warn("failed to watch archive directory")
		}
	}

	go s.run()
	return nil
}

func (s *ArchiveState) run() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.revalidate(event.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("archive watcher error")
		}
	}
}

func (s *ArchiveState) revalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, configured := s.valid[name]; !configured {
		return
	}
	was := s.valid[name]
	now := fileExists(name)
	if was == now {
		return
	}
	s.valid[name] = now
	if now {
		s.logger.WithField("path", name).Info("layout archive became available, archive provisioning enabled")
	} else {
		s.logger.WithField("path", name).Error("layout archive removed, archive provisioning disabled for it")
	}
}

// Close stops the watcher.
func (s *ArchiveState) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
