package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var (
	authBucket = []byte("auth")
	tokenKey   = []byte("tokens")
)

// BoltStore keeps tokens in a BoltDB bucket
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a BoltDB file at path
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// GetAuth reads the stored tokens
func (b *BoltStore) GetAuth() (*Auth, error) {
	var auth *Auth
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(authBucket)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(tokenKey)
		if data == nil {
			return nil
		}

		var a Auth
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("decoding stored tokens: %w", err)
		}
		auth = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, ErrNoAuth
	}
	return auth, nil
}

// SaveAuth replaces the stored tokens in a single transaction
func (b *BoltStore) SaveAuth(auth *Auth) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(authBucket)
		if err != nil {
			return err
		}

		rec := *auth
		rec.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return bucket.Put(tokenKey, data)
	})
}

// Close closes the database
func (b *BoltStore) Close() error {
	return b.db.Close()
}
