// Package store keeps compiled programs in a local BoltDB file, by name and by content ID.
package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/born-ml/microexec/internal/program"
)

var (
	// ErrNotFound is returned when a program doesn't exist.
	ErrNotFound = errors.New("program not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store closed")
)

// Bucket names for BoltDB.
var (
	// bucketPrograms stores program blobs keyed by name.
	bucketPrograms = []byte("programs")

	// bucketEntries stores program entries keyed by name.
	bucketEntries = []byte("entries")

	// bucketIDs indexes names by base58 program ID.
	bucketIDs = []byte("ids")
)

// Config holds store configuration options.
type Config struct {
	// Path is the database file.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool

	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// Entry describes a stored program.
type Entry struct {
	Name       string
	ID         string
	Size       int
	Methods    []string
	Compressed bool
	StoredAt   time.Time
}

// Store is a BoltDB-backed program store.
type Store struct {
	db     *bolt.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens a store at config.Path.
func Open(config Config) (*Store, error) {
	if !config.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	opts := &bolt.Options{
		Timeout:  config.Timeout,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}
	db, err := bolt.Open(config.Path, 0o600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, config: config}
	if !config.ReadOnly {
		if err := s.initBuckets(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}
	return s, nil
}

// initBuckets creates all required buckets.
func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPrograms, bucketEntries, bucketIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Put stores blob under name and returns its program ID. The blob must be a valid program.
// Storing under an existing name replaces the previous program.
func (s *Store) Put(name string, blob []byte) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if err := program.ValidateName(name); err != nil {
		return "", err
	}

	p, err := program.Load(program.NewBufferSource(blob))
	if err != nil {
		return "", fmt.Errorf("parse program: %w", err)
	}
	id := p.ID().String()

	entry := Entry{
		Name:       name,
		ID:         id,
		Size:       len(blob),
		Methods:    p.MethodNames(),
		Compressed: p.Flags()&program.FlagCompressed != 0,
		StoredAt:   time.Now().UTC(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&entry); err != nil {
		return "", fmt.Errorf("encode entry: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		ids := tx.Bucket(bucketIDs)

		prev, err := getEntry(entries, name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := tx.Bucket(bucketPrograms).Put([]byte(name), blob); err != nil {
			return err
		}
		if err := entries.Put([]byte(name), buf.Bytes()); err != nil {
			return err
		}
		if err := ids.Put([]byte(id), []byte(name)); err != nil {
			return err
		}
		if prev != nil && prev.ID != id {
			return releaseID(entries, ids, prev.ID, name)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the program stored under name.
func (s *Store) Get(name string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPrograms)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		// Bolt values are only valid for the life of the transaction.
		blob = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// GetByID returns the program with the given base58 ID.
func (s *Store) GetByID(id string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := program.ParseID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIDs)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		name = string(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(name)
}

// List returns all entries ordered by name.
func (s *Store) List() ([]Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return fmt.Errorf("decode entry %q: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes the program stored under name.
func (s *Store) Delete(name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		e, err := getEntry(entries, name)
		if err != nil {
			return err
		}

		if err := entries.Delete([]byte(name)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPrograms).Delete([]byte(name)); err != nil {
			return err
		}
		return releaseID(entries, tx.Bucket(bucketIDs), e.ID, name)
	})
}

// getEntry decodes the entry stored under name.
func getEntry(entries *bolt.Bucket, name string) (*Entry, error) {
	raw := entries.Get([]byte(name))
	if raw == nil {
		return nil, ErrNotFound
	}
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode entry %q: %w", name, err)
	}
	return &e, nil
}

// releaseID drops name as the owner of id. The index entry moves to another program
// with the same ID if one is left, and is removed otherwise.
func releaseID(entries, ids *bolt.Bucket, id, name string) error {
	if owner := ids.Get([]byte(id)); owner == nil || string(owner) != name {
		return nil
	}

	var heir []byte
	err := entries.ForEach(func(k, v []byte) error {
		if heir != nil || string(k) == name {
			return nil
		}
		var e Entry
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
			return fmt.Errorf("decode entry %q: %w", k, err)
		}
		if e.ID == id {
			heir = bytes.Clone(k)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if heir == nil {
		return ids.Delete([]byte(id))
	}
	return ids.Put([]byte(id), heir)
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.db.Close()
}
