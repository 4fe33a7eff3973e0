package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	// DefaultFileName is the store file inside the data directory
	DefaultFileName = "plaza_store.json"
	BackupSuffix    = ".backup"
	TmpSuffix       = ".tmp"
	FilePermissions = 0644
)

// FileStore keeps every key in one JSON object file. Writes go to a tmp
// file that is renamed over the original, after copying the previous
// version to a .backup file.
type FileStore struct {
	path   string
	quota  int
	logger *zerolog.Logger

	mu       sync.Mutex
	watchers []*fileWatch
}

type fileWatch struct {
	key  string
	last string
	ok   bool
	fn   func()
}

// FileOption configures a FileStore
type FileOption func(*FileStore)

// WithQuota sets the maximum encoded file size; <= 0 disables the limit
func WithQuota(bytes int) FileOption {
	return func(s *FileStore) { s.quota = bytes }
}

// WithFileLogger sets the logger used for watcher diagnostics
func WithFileLogger(logger *zerolog.Logger) FileOption {
	return func(s *FileStore) { s.logger = logger }
}

// NewFileStore opens (or prepares) the store file at path
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	nop := zerolog.Nop()
	s := &FileStore{path: path, quota: DefaultQuota, logger: &nop}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return s, nil
}

// Path returns the store file location
func (s *FileStore) Path() string {
	return s.path
}

// readAll loads the key map. A missing file is an empty store.
func (s *FileStore) readAll() (map[string]string, []byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil, nil
		}
		return nil, nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]string{}, data, nil
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, data, fmt.Errorf("store file %s is corrupt: %w", s.path, err)
	}
	return values, data, nil
}

// readForWrite is readAll for Set and Remove. A corrupt file does not block
// writes: it is kept as the backup and the store starts over empty.
func (s *FileStore) readForWrite() (map[string]string, []byte, bool, error) {
	values, data, err := s.readAll()
	if err == nil {
		return values, data, false, nil
	}
	if data == nil {
		return nil, nil, false, err
	}
	s.logger.Warn().Err(err).Str("path", s.path).Msg("Store file is corrupt, starting from an empty store")
	return map[string]string{}, data, true, nil
}

// Get implements Store
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, _, err := s.readAll()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Store
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, prev, _, err := s.readForWrite()
	if err != nil {
		return err
	}
	values[key] = value
	if err := s.writeLocked(key, values, prev); err != nil {
		return err
	}
	s.noteOwnWrite(key, value, true)
	return nil
}

// Remove implements Store
func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, prev, corrupt, err := s.readForWrite()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok && !corrupt {
		return nil
	}
	delete(values, key)
	if err := s.writeLocked(key, values, prev); err != nil {
		return err
	}
	s.noteOwnWrite(key, "", false)
	return nil
}

// writeLocked saves values with backup (caller must hold mu)
func (s *FileStore) writeLocked(key string, values map[string]string, prev []byte) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if s.quota > 0 && len(data) > s.quota {
		return quotaError(key, len(data), s.quota)
	}

	if prev != nil {
		if err := os.WriteFile(s.path+BackupSuffix, prev, FilePermissions); err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to create backup")
		}
	}

	tmpFile := s.path + TmpSuffix
	if err := os.WriteFile(tmpFile, data, FilePermissions); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.path)
}

// noteOwnWrite updates watcher baselines so our own writes do not fire
func (s *FileStore) noteOwnWrite(key, value string, ok bool) {
	for _, w := range s.watchers {
		if w.key == key {
			w.last, w.ok = value, ok
		}
	}
}

// Watch implements Store using fsnotify on the data directory, since the
// file itself is replaced by rename on every write.
func (s *FileStore) Watch(ctx context.Context, key string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	s.mu.Lock()
	values, _, err := s.readAll()
	if err != nil {
		values = map[string]string{}
	}
	w := &fileWatch{key: key, fn: fn}
	w.last, w.ok = values[key]
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				s.removeWatch(w)
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if s.changedExternally(w) {
					fn()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Str("path", s.path).Msg("File watcher error")
			}
		}
	}()
	return nil
}

func (s *FileStore) changedExternally(w *fileWatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, _, err := s.readAll()
	if err != nil {
		// half-written or corrupt file; the next event will settle it
		return false
	}
	v, ok := values[w.key]
	if v == w.last && ok == w.ok {
		return false
	}
	w.last, w.ok = v, ok
	return true
}

func (s *FileStore) removeWatch(w *fileWatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.watchers {
		if existing == w {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			return
		}
	}
}

// Close implements Store
func (s *FileStore) Close() error {
	return nil
}
