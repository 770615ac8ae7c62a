package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var slotsBucket = []byte("slots")

// BoltSlot stores the value under one key of a bbolt bucket
type BoltSlot struct {
	db  *bolt.DB
	key []byte
}

// OpenBolt opens (or creates) the bbolt file at path and binds the slot to key
func OpenBolt(path, key string) (*BoltSlot, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, errCreate := tx.CreateBucketIfNotExists(slotsBucket)
		return errCreate
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create slots bucket: %w", err)
	}

	return &BoltSlot{db: db, key: []byte(key)}, nil
}

func (b *BoltSlot) Read() ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(slotsBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(b.key); v != nil {
			// v is only valid inside the transaction
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %s: %w", b.key, err)
	}
	return out, out != nil, nil
}

func (b *BoltSlot) Write(value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(slotsBucket)
		if err != nil {
			return err
		}
		return bucket.Put(b.key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", b.key, err)
	}
	return nil
}

func (b *BoltSlot) Remove() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(slotsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(b.key)
	})
	if err != nil {
		return fmt.Errorf("failed to remove slot %s: %w", b.key, err)
	}
	return nil
}

func (b *BoltSlot) Close() error {
	return b.db.Close()
}
