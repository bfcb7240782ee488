package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/hoist/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// FileName is the ledger database name inside the data directory
const FileName = "hoist.db"

var (
	// Bucket names
	bucketArtifacts = []byte("artifacts")
	bucketRuns      = []byte("runs")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, FileName)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketArtifacts, bucketRuns} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Artifact operations
func (s *BoltStore) PutArtifact(artifact *types.Artifact) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data, err := json.Marshal(artifact)
		if err != nil {
			return err
		}
		return b.Put([]byte(artifact.Path), data)
	})
}

func (s *BoltStore) GetArtifact(path string) (*types.Artifact, error) {
	var artifact types.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data := b.Get([]byte(path))
		if data == nil {
			return fmt.Errorf("artifact %s: %w", path, ErrNotFound)
		}
		return json.Unmarshal(data, &artifact)
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// ListArtifacts returns every artifact in path order
func (s *BoltStore) ListArtifacts() ([]*types.Artifact, error) {
	var artifacts []*types.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			var artifact types.Artifact
			if err := json.Unmarshal(v, &artifact); err != nil {
				return err
			}
			artifacts = append(artifacts, &artifact)
			return nil
		})
	})
	return artifacts, err
}

// Run operations

// CreateRun appends a run. Keys come from the bucket sequence so cursor order
// is insertion order.
func (s *BoltStore) CreateRun(run *types.Run) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

func (s *BoltStore) LastSuccessfulRun() (*types.Run, error) {
	var found *types.Run
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run types.Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			if run.Successful {
				found = &run
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("successful run: %w", ErrNotFound)
	}
	return found, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
