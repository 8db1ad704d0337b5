package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Persisted entry keys for a restorable session.
const (
	StoreKeyAccessToken  = "access_token"
	StoreKeyRefreshToken = "refresh_token"
	StoreKeyUser         = "user"
)

// Store is the fallible persistence surface for session state. Persistence
// is a best-effort convenience: implementations swallow read/write failures
// and report "no stored value" instead, which is why Get returns an
// optional rather than an error.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemStore is an in-process Store for tests and embedders that manage
// persistence themselves.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{values: map[string]string{}}
}

func (s *MemStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FileStore persists session entries as one JSON file under the user config
// directory. A sibling advisory lock keeps concurrent SDK processes from
// interleaving writes. All failures degrade to "no stored value".
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileStore creates a store rooted at dir, or under os.UserConfigDir()/
// basehub when dir is empty.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		root, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(root, "basehub")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{
		path: filepath.Join(dir, "session.json"),
		lock: flock.New(filepath.Join(dir, "session.lock")),
	}, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	value, ok := values[key]
	return value, ok
}

func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tryLock() {
		return
	}
	defer s.unlock()
	values := s.read()
	values[key] = value
	s.write(values)
}

func (s *FileStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tryLock() {
		return
	}
	defer s.unlock()
	values := s.read()
	delete(values, key)
	s.write(values)
}

func (s *FileStore) tryLock() bool {
	locked, err := s.lock.TryLock()
	return err == nil && locked
}

func (s *FileStore) unlock() {
	_ = s.lock.Unlock()
}

func (s *FileStore) read() map[string]string {
	values := map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return values
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return map[string]string{}
	}
	return values
}

func (s *FileStore) write(values map[string]string) {
	payload, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, payload, 0o600)
}
