// Package store persists command results and saved command shortcuts.
// Persistence is best-effort for results: a write failure never fails
// the execution that produced the result.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	commandsBucket = []byte("commands")
	savedBucket    = []byte("saved_commands")
)

// CommandRecord is a persisted command result.
type CommandRecord struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	Status    string    `json:"status"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SavedCommand is a named command shortcut.
type SavedCommand struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Command     string    `json:"command"`
	Cwd         string    `json:"cwd,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store wraps the bolt database file.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(commandsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(savedBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file. Safe on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendResult records a command result. Keys are time-ordered so a
// reverse cursor scan returns most recent first.
func (s *Store) AppendResult(rec CommandRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(commandsBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%020d", seq)
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), payload)
	})
}

// RecentCommands returns up to limit results, most recent first.
func (s *Store) RecentCommands(limit int) ([]CommandRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	result := make([]CommandRecord, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(commandsBucket).Cursor()
		for key, value := cursor.Last(); key != nil && len(result) < limit; key, value = cursor.Prev() {
			var rec CommandRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				continue
			}
			result = append(result, rec)
		}
		return nil
	})
	return result, err
}

// SaveCommand stores a named shortcut and returns it with its assigned
// id and creation time.
func (s *Store) SaveCommand(saved SavedCommand) (SavedCommand, error) {
	if s == nil || s.db == nil {
		return saved, fmt.Errorf("store not open")
	}
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		payload, err := json.Marshal(saved)
		if err != nil {
			return err
		}
		return tx.Bucket(savedBucket).Put([]byte(saved.ID), payload)
	})
	return saved, err
}

// ListSaved returns all saved shortcuts, oldest first.
func (s *Store) ListSaved() ([]SavedCommand, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var result []SavedCommand
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(savedBucket).ForEach(func(_, value []byte) error {
			var saved SavedCommand
			if err := json.Unmarshal(value, &saved); err != nil {
				return nil
			}
			result = append(result, saved)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteSaved removes a shortcut by id. Reports whether it existed.
func (s *Store) DeleteSaved(id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(savedBucket)
		if bucket.Get([]byte(id)) == nil {
			return nil
		}
		existed = true
		return bucket.Delete([]byte(id))
	})
	return existed, err
}
