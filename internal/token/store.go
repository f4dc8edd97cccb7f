// Package token persists the bearer token, the client's only durable
// state. The store performs no validation; callers derive session state
// from whatever is currently stored.
package token

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store holds the token in a single file. External writers (another
// process logging in or out with the same config dir) are observed via
// Watch and surface through the same subscriber notifications as local
// mutations, so readers re-derive state either way.
type Store struct {
	path string
	log  *zap.Logger

	mu   sync.Mutex
	subs []func()
}

// New creates a Store persisting to path. The logger may be nil.
func New(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Get returns the stored token, or ok=false if none is stored.
func (s *Store) Get() (string, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", false
	}
	return tok, true
}

// Set persists the token and notifies subscribers.
func (s *Store) Set(tok string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(tok), 0o600); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Clear removes the stored token and notifies subscribers. Clearing an
// already-empty store is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	s.notify()
	return nil
}

// Subscribe registers fn to run after every token change, local or
// external. Subscribers must re-derive state rather than assume what
// changed; duplicate notifications are harmless.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Watch observes the token file for writes by other processes and feeds
// them into the subscriber mechanism. Blocks until ctx is done. The
// directory is watched rather than the file so that create/remove of the
// token file itself is seen.
func (s *Store) Watch(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	s.log.Debug("token watcher started", zap.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.log.Debug("token changed externally", zap.String("op", ev.Op.String()))
				s.notify()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("token watcher error", zap.Error(err))
		}
	}
}
