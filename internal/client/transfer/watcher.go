package transfer

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher watches the temp directory and fails any live CHUNKED session
// whose temp file is removed or renamed by someone other than the manager.
// The watch is registered before StartWatcher returns. stop is idempotent.
func (m *Manager) StartWatcher(ctx context.Context) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(m.cfg.TempDir); err != nil {
		_ = w.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					m.tempFileGone(ctx, ev.Name)
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				m.logger.Warn(ctx, "temp dir watcher error", "error", werr)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = w.Close()
			<-done
		})
	}, nil
}

func (m *Manager) tempFileGone(ctx context.Context, name string) {
	name = filepath.Clean(name)
	for _, s := range m.sessions.all() {
		s.mu.Lock()
		if s.kind == KindChunked && !s.status.Terminal() && filepath.Clean(s.tempPath) == name {
			s.finish(StatusFailed, m.now())
			m.logger.Warn(ctx, "temp file removed externally", "session", s.id, "path", name)
		}
		s.mu.Unlock()
	}
}
