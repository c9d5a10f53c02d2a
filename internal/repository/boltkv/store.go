// Package boltkv is a file-backed key-value store with TTLs for single-host deployments.
// It serves the embedding cache and the token budget when no Redis is configured.
package boltkv

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kailas-cloud/newsdex/internal/db"
)

var bucketKV = []byte("kv")

// expiryLen prefixes every value: unix-nano expiry, 0 when the key never expires.
const expiryLen = 8

// Store implements db.KVStore on bbolt.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ db.KVStore = (*Store)(nil)

// Open opens or creates the store file.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Store{db: bdb, now: time.Now}, nil
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value or db.ErrKeyNotFound when absent or expired.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		val, ok := s.read(tx.Bucket(bucketKV), key)
		if !ok {
			return db.ErrKeyNotFound
		}
		out = append([]byte(nil), val...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores value without expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return s.write(tx.Bucket(bucketKV), key, value, 0)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrBy adds val to the decimal integer at key, starting from zero. Expiry is preserved.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		var cur int64
		var expiry int64
		if raw := b.Get([]byte(key)); len(raw) >= expiryLen && !s.expired(raw) {
			expiry = int64(binary.BigEndian.Uint64(raw[:expiryLen]))
			n, err := strconv.ParseInt(string(raw[expiryLen:]), 10, 64)
			if err != nil {
				return fmt.Errorf("value at %s is not an integer: %w", key, err)
			}
			cur = n
		}
		return s.write(b, key, []byte(strconv.FormatInt(cur+val, 10)), expiry)
	})
	if err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets a TTL on an existing key. With nx it only applies when the key has no expiry yet.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		raw := b.Get([]byte(key))
		if len(raw) < expiryLen || s.expired(raw) {
			return nil
		}
		if nx && binary.BigEndian.Uint64(raw[:expiryLen]) != 0 {
			return nil
		}
		value := append([]byte(nil), raw[expiryLen:]...)
		return s.write(b, key, value, s.now().Add(ttl).UnixNano())
	})
	if err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}

func (s *Store) read(b *bbolt.Bucket, key string) ([]byte, bool) {
	raw := b.Get([]byte(key))
	if len(raw) < expiryLen || s.expired(raw) {
		return nil, false
	}
	return raw[expiryLen:], true
}

func (s *Store) write(b *bbolt.Bucket, key string, value []byte, expiry int64) error {
	buf := make([]byte, expiryLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiry))
	copy(buf[expiryLen:], value)
	return b.Put([]byte(key), buf)
}

func (s *Store) expired(raw []byte) bool {
	exp := int64(binary.BigEndian.Uint64(raw[:expiryLen]))
	return exp != 0 && s.now().UnixNano() >= exp
}
