// Package clientcache is the client half of conditional caching: it remembers
// the last value of each view together with the validator the server issued
// for it, and presents that validator on the next request.
//
// The cache only ever saves transfer. Any doubt about a stored record (bad
// JSON, missing validator, storage failure) is treated as a miss.
package clientcache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrInvalidValidator is returned by Set when the validator is empty.
var ErrInvalidValidator = errors.New("validator must be a non-empty string")

// Entry is one cached view.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Validator string          `json:"etag"`
	FetchedAt int64           `json:"timestamp"`
}

func (e *Entry) valid() bool {
	return e != nil && strings.TrimSpace(e.Validator) != "" && len(e.Value) > 0 && json.Valid(e.Value)
}

// Store keeps entries in memory and mirrors them to durable storage.
type Store struct {
	mu      sync.RWMutex
	memory  map[string]*Entry
	durable Storage
	now     func() time.Time
}

// NewStore creates a Store over durable. A nil durable keeps entries in
// memory only.
func NewStore(durable Storage) *Store {
	return &Store{
		memory:  make(map[string]*Entry),
		durable: durable,
		now:     time.Now,
	}
}

// Get returns the entry for key from memory, falling back to durable storage.
// A durable record that does not decode into a valid entry is purged.
func (s *Store) Get(key string) (*Entry, bool) {
	s.mu.RLock()
	entry, ok := s.memory[key]
	s.mu.RUnlock()
	if ok {
		return entry, true
	}
	if s.durable == nil {
		return nil, false
	}

	raw, ok, err := s.durable.GetItem(key)
	if err != nil {
		slog.Warn("client cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	entry = &Entry{}
	if err := json.Unmarshal([]byte(raw), entry); err != nil || !entry.valid() {
		slog.Warn("purging corrupt client cache entry", "key", key)
		if err := s.durable.RemoveItem(key); err != nil {
			slog.Warn("failed to purge client cache entry", "key", key, "error", err)
		}
		return nil, false
	}

	s.mu.Lock()
	s.memory[key] = entry
	s.mu.Unlock()
	return entry, true
}

// Set stores value under key with its validator. An empty validator is
// rejected so that an unvalidated copy can never be trusted later. Durable
// write failures are logged; the memory copy still serves.
func (s *Store) Set(key string, value json.RawMessage, validator string) error {
	if strings.TrimSpace(validator) == "" {
		slog.Warn("refusing client cache entry without validator", "key", key)
		return ErrInvalidValidator
	}
	if !json.Valid(value) {
		return errors.New("value is not valid JSON")
	}

	entry := &Entry{
		Value:     append(json.RawMessage(nil), value...),
		Validator: validator,
		FetchedAt: s.now().UnixMilli(),
	}

	s.mu.Lock()
	s.memory[key] = entry
	s.mu.Unlock()

	if s.durable == nil {
		return nil
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("failed to encode client cache entry", "key", key, "error", err)
		return nil
	}
	if err := s.durable.SetItem(key, string(encoded)); err != nil {
		slog.Warn("client cache write failed, keeping memory copy", "key", key, "error", err)
	}
	return nil
}

// Delete drops key from memory and durable storage.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.memory, key)
	s.mu.Unlock()
	if s.durable != nil {
		if err := s.durable.RemoveItem(key); err != nil {
			slog.Warn("failed to remove client cache entry", "key", key, "error", err)
		}
	}
}
