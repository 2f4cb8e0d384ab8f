package presence

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

// Record is the last known presence of a username.
type Record struct {
	Username    string    `json:"username"`
	Status      string    `json:"status"`
	Online      bool      `json:"online"`
	Connections int       `json:"connections"`
	LastSeen    time.Time `json:"last_seen"`
}

// KV is the subset of kvjetstream.KVStoragePort the store uses.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
}

// Store keeps presence records keyed by username.
type Store struct {
	mu sync.Mutex // serializes read-modify-write in Update
	kv KV
}

// NewStore creates a store over kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// key maps a display name onto the KV key alphabet.
func key(username string) string {
	return "user." + base64.RawURLEncoding.EncodeToString([]byte(username))
}

// Get returns the record for username. The bool is false when none exists.
func (s *Store) Get(username string) (Record, bool, error) {
	data, err := s.kv.Get(key(username))
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to get presence: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return rec, true, nil
}

// Update loads the record for username, applies fn and writes it back.
func (s *Store) Update(username string, fn func(*Record)) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, _, err := s.Get(username)
	if err != nil {
		return Record{}, err
	}
	rec.Username = username
	fn(&rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal presence: %w", err)
	}
	if err := s.kv.Set(key(username), data, 0); err != nil {
		return Record{}, fmt.Errorf("failed to store presence: %w", err)
	}
	return rec, nil
}
