// Package kvstore provides a durable key/value store backed by a single
// JSON file. Session and binding state survive process restarts through
// it. Writes replace the file atomically so a crash mid-write can never
// leave a half-written state file behind.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SchemaVersion identifies the on-disk layout. A state file carrying a
// different version is discarded on load instead of being interpreted.
const SchemaVersion = 1

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("kvstore: key not found")

// fileState is the on-disk representation.
type fileState struct {
	SchemaVersion int                        `json:"schema_version"`
	Entries       map[string]json.RawMessage `json:"entries"`
}

// Store is a durable key/value store. All methods are safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]json.RawMessage
}

// Open loads the store from path, creating an empty store when the file
// does not exist. A file with an unknown schema version is ignored and
// will be overwritten on the next write.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("kvstore: path is required")
	}

	s := &Store{
		path:    path,
		entries: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("kvstore: read state file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt state is discarded, not fatal. Starting empty is
		// always recoverable; refusing to start is not.
		return s, nil
	}
	if state.SchemaVersion != SchemaVersion {
		return s, nil
	}
	if state.Entries != nil {
		s.entries = state.Entries
	}
	return s, nil
}

// Get returns the raw value stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// GetJSON unmarshals the value stored under key into dest.
func (s *Store) GetJSON(key string, dest any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("kvstore: unmarshal %q: %w", key, err)
	}
	return nil
}

// Put stores a raw value under key and persists the store.
func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = json.RawMessage(value)
	return s.flushLocked()
}

// PutJSON marshals value and stores it under key.
func (s *Store) PutJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: marshal %q: %w", key, err)
	}
	return s.Put(key, data)
}

// Delete removes key and persists the store. Deleting a missing key is
// not an error.
func (s *Store) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.flushLocked()
}

// Clear removes every entry and persists the empty store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]json.RawMessage)
	return s.flushLocked()
}

// Exists reports whether key has a value.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// flushLocked writes the current state to disk via temp-file rename.
// Callers must hold s.mu.
func (s *Store) flushLocked() error {
	state := fileState{
		SchemaVersion: SchemaVersion,
		Entries:       s.entries,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("kvstore: marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("kvstore: create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("kvstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("kvstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("kvstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("kvstore: replace state file: %w", err)
	}
	return nil
}
