package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mafzaal/letstalk-index/pkg/errors"
)

// boltEntry is the JSON payload stored under each key.
type boltEntry struct {
	Content   string            `json:"content"`
	Source    string            `json:"source"`
	Ordinal   int               `json:"ordinal"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
}

// BoltStore backs a local on-disk vector collection, one bucket per
// collection, keyed by "source\x00ordinal" so a prefix scan finds every
// chunk belonging to a source.
type BoltStore struct {
	db         *bolt.DB
	collection string
}

// OpenBoltStore opens (creating if needed) a bbolt database at path and
// ensures the collection's bucket exists.
func OpenBoltStore(path, collection string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Store("open bolt database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(collection))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Store("create bolt bucket", err)
	}
	return &BoltStore{db: db, collection: collection}, nil
}

func boltKey(source string, ordinal int) []byte {
	buf := make([]byte, len(source)+1+4)
	copy(buf, source)
	buf[len(source)] = 0
	binary.BigEndian.PutUint32(buf[len(source)+1:], uint32(ordinal))
	return buf
}

// Add upserts each entry into the collection's bucket.
func (s *BoltStore) Add(_ context.Context, entries []Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(s.collection))
		for _, e := range entries {
			payload, err := json.Marshal(boltEntry{
				Content:   e.Chunk.Content,
				Source:    e.Chunk.Source,
				Ordinal:   e.Chunk.Ordinal,
				Embedding: e.Embedding,
				Metadata:  e.Chunk.Metadata,
			})
			if err != nil {
				return err
			}
			if err := bucket.Put(boltKey(e.Chunk.Source, e.Chunk.Ordinal), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveBySource deletes every key with the given source's prefix.
func (s *BoltStore) RemoveBySource(_ context.Context, source string) (int, error) {
	prefix := append([]byte(source), 0)
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(s.collection))
		c := bucket.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Store("remove chunks by source", err)
	}
	return removed, nil
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

// ValidateHealth performs a trivial read probe against the collection's
// bucket.
func (s *BoltStore) ValidateHealth(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(s.collection))
		if bucket == nil {
			return errors.Store("collection bucket missing", nil)
		}
		return nil
	})
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
