// Package store persists node identity across restarts: the last assigned
// node ID, the neighbor set seen at shutdown and the boot session. The
// discovery protocol always renegotiates the live node ID; the node logs
// the previous record at startup and nothing else reads it.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var identityBucket = []byte("identity")

var sessionKey = []byte("session")

// Session is one boot of the node.
type Session struct {
	ID        uuid.UUID `json:"id"`
	NodeID    uint8     `json:"node_id"`
	Neighbors []uint8   `json:"neighbors"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a bbolt-backed identity record.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(identityBucket); err != nil {
			return fmt.Errorf("failed to create bucket: %s", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// SaveSession writes the current session record.
func (s *Store) SaveSession(session Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(identityBucket).Put(sessionKey, raw)
	})
}

// LoadSession reads the most recent session record. ok is false when no
// session has ever been saved.
func (s *Store) LoadSession() (session Session, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(identityBucket).Get(sessionKey)
		if raw == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(raw, &session)
	})
	return session, ok, err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
