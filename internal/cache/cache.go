// Package cache persists the last successfully committed body of each
// fetched map in a bbolt database, so maps come back populated after a
// restart instead of waiting for the first fetch.
package cache

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"refmap/internal/logging"
)

var (
	logger        = logging.For("cache")
	contentBucket = []byte("content")
)

// Record framing: [2B magic][2B version][8B unix ts][4B sig len][sig][body].
const (
	recMagic   = 0x524D // "RM"
	recVersion = 0x0001
	headerSize = 16
)

// Store is a bbolt-backed content cache. It satisfies maps.ContentCache.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores the body (and detached signature, may be nil) for a map name,
// replacing any previous record.
func (s *Store) Put(name string, body, sig []byte) error {
	rec := encodeRecord(body, sig, time.Now())
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(contentBucket)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return b.Put([]byte(name), rec)
	})
}

// Get returns the cached body and signature for a map name. ok is false
// when no record exists; corrupt records are dropped and reported absent.
func (s *Store) Get(name string) (body, sig []byte, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(contentBucket)
		if b == nil {
			return nil
		}
		rec := b.Get([]byte(name))
		if rec == nil {
			return nil
		}
		var derr error
		body, sig, derr = decodeRecord(rec)
		if derr != nil {
			logger.Warn("dropping corrupt cache record", "map", name, "err", derr)
			return nil
		}
		ok = true
		return nil
	})
	return body, sig, ok, err
}

// Delete removes a map's cached record.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(contentBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(name))
	})
}

func encodeRecord(body, sig []byte, when time.Time) []byte {
	rec := make([]byte, headerSize+len(sig)+len(body))
	binary.BigEndian.PutUint16(rec[0:2], recMagic)
	binary.BigEndian.PutUint16(rec[2:4], recVersion)
	binary.BigEndian.PutUint64(rec[4:12], uint64(when.Unix()))
	binary.BigEndian.PutUint32(rec[12:16], uint32(len(sig)))
	copy(rec[headerSize:], sig)
	copy(rec[headerSize+len(sig):], body)
	return rec
}

func decodeRecord(rec []byte) (body, sig []byte, err error) {
	if len(rec) < headerSize {
		return nil, nil, fmt.Errorf("record too short: %d bytes", len(rec))
	}
	if magic := binary.BigEndian.Uint16(rec[0:2]); magic != recMagic {
		return nil, nil, fmt.Errorf("invalid magic: 0x%04X", magic)
	}
	if v := binary.BigEndian.Uint16(rec[2:4]); v != recVersion {
		return nil, nil, fmt.Errorf("unsupported record version: %d", v)
	}
	sigLen := int(binary.BigEndian.Uint32(rec[12:16]))
	if headerSize+sigLen > len(rec) {
		return nil, nil, fmt.Errorf("signature length %d exceeds record", sigLen)
	}
	payload := rec[headerSize:]
	if sigLen > 0 {
		sig = append([]byte(nil), payload[:sigLen]...)
	}
	body = append([]byte(nil), payload[sigLen:]...)
	return body, sig, nil
}
