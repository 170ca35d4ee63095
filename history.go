package main

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"
)

// historyEntry records one playback start.
type historyEntry struct {
	At       time.Time `json:"at"`
	URL      string    `json:"url"`
	Filename string    `json:"filename"`
}

// historyStore keeps playback starts in Pebble under 8-byte big-endian
// sequence keys. A nil store is valid and records nothing.
type historyStore struct {
	db   *pebble.DB
	mu   sync.Mutex
	next uint64
}

func openHistory(dir string) (*historyStore, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, err
	}
	s := &historyStore{db: db}
	it, err := db.NewIter(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defer func() { _ = it.Close() }()
	if it.Last() && len(it.Key()) >= 8 {
		s.next = binary.BigEndian.Uint64(it.Key()[:8]) + 1
	}
	return s, nil
}

func (s *historyStore) Append(e historyEntry) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, s.next)
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		return err
	}
	s.next++
	return nil
}

// Recent returns up to limit of the latest entries, oldest first.
// limit <= 0 returns everything.
func (s *historyStore) Recent(limit int) ([]historyEntry, error) {
	if s == nil || s.db == nil {
		return []historyEntry{}, nil
	}
	it, err := s.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	out := make([]historyEntry, 0, 32)
	for valid := it.Last(); valid; valid = it.Prev() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var e historyEntry
		if err := json.Unmarshal(it.Value(), &e); err == nil {
			out = append(out, e)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *historyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
