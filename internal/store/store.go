package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/harvester/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// DefaultBucket holds harvested records unless configured otherwise.
const DefaultBucket = "comments"

// Key prefixes separate identified documents from plain inserts.
const (
	prefixIdentity = "id:"
	prefixPlain    = "doc:"
)

// RecordStore implements domain.RecordSink using BoltDB.
// An empty path gives a memory-only store (no persistence).
type RecordStore struct {
	db     *bolt.DB
	bucket []byte

	mu  sync.RWMutex // Protects mem
	mem map[string][]byte
}

// NewRecordStore opens (or creates) the BoltDB file at path.
func NewRecordStore(path, bucket string) (*RecordStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	if path == "" {
		return &RecordStore{bucket: []byte(bucket), mem: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", domain.ErrConnection, err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %v", domain.ErrConnection, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create bucket: %v", domain.ErrConnection, err)
	}

	return &RecordStore{db: db, bucket: []byte(bucket)}, nil
}

func (s *RecordStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Writes ===

func (s *RecordStore) UpsertByIdentity(ctx context.Context, rec domain.Record) error {
	key := rec.IdentityKey()
	if key == "" {
		return fmt.Errorf("%w: record has no identity", domain.ErrWrite)
	}
	return s.put(ctx, prefixIdentity+key, rec)
}

func (s *RecordStore) InsertPlain(ctx context.Context, rec domain.Record) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("%w: generate key: %v", domain.ErrWrite, err)
	}
	return s.put(ctx, prefixPlain+id.String(), rec)
}

func (s *RecordStore) put(ctx context.Context, key string, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWrite, err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", domain.ErrWrite, err)
	}

	if s.db == nil {
		s.mu.Lock()
		s.mem[key] = data
		s.mu.Unlock()
		return nil
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %q missing", s.bucket)
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWrite, err)
	}
	return nil
}

// === Reads ===

// Get returns the document stored under an identity.
func (s *RecordStore) Get(identity string) (domain.Record, bool) {
	data := s.raw(prefixIdentity + identity)
	if data == nil {
		return nil, false
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, false
	}
	return rec, true
}

func (s *RecordStore) raw(key string) []byte {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.mem[key]
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data
}

// Count returns the number of stored documents.
func (s *RecordStore) Count() int {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.mem)
	}

	n := 0
	s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(s.bucket); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n
}

// ForEach calls fn for every stored document in key order.
// Identified documents are passed their identity, plain ones an empty string.
// Returning an error from fn stops iteration.
func (s *RecordStore) ForEach(fn func(identity string, rec domain.Record) error) error {
	visit := func(k, v []byte) error {
		rec, err := decodeRecord(v)
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		identity, _ := strings.CutPrefix(string(k), prefixIdentity)
		if strings.HasPrefix(string(k), prefixPlain) {
			identity = ""
		}
		return fn(identity, rec)
	}

	if s.db == nil {
		s.mu.RLock()
		keys := make([]string, 0, len(s.mem))
		for k := range s.mem {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		snapshot := make([][]byte, len(keys))
		for i, k := range keys {
			snapshot[i] = s.mem[k]
		}
		s.mu.RUnlock()

		for i, k := range keys {
			if err := visit([]byte(k), snapshot[i]); err != nil {
				return err
			}
		}
		return nil
	}

	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(visit)
	})
}

func decodeRecord(data []byte) (domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec domain.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
