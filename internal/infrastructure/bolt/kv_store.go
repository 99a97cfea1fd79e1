// Package bolt stores key-value records in an embedded bbolt file. It suits
// single-instance deployments and local development.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sngm3741/form-intake/api/internal/infrastructure/kv"
	"go.etcd.io/bbolt"
)

// KVStore implements kv.Store inside one bucket of a bbolt database.
type KVStore struct {
	db     *bbolt.DB
	bucket []byte
}

// Open opens (or creates) the database at path and ensures the bucket exists.
func Open(path, bucket string) (*KVStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &KVStore{db: db, bucket: []byte(bucket)}
	if err := store.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *KVStore) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		return nil
	})
}

// Get returns a copy of the value; bbolt slices are only valid inside the transaction.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", s.bucket)
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return kv.ErrNotFound
		}
		value = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", s.bucket)
		}
		return bucket.Put([]byte(key), value)
	})
}

func (s *KVStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return fmt.Errorf("bucket %s is missing", s.bucket)
		}
		return nil
	})
}

func (s *KVStore) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
