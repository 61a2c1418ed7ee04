package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketJobs = []byte("jobs")

// BoltStore implements Ledger using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB-backed ledger under
// dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "bastion.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create jobs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func jobKey(jobID uint32) []byte {
	return []byte(fmt.Sprintf("%010d", jobID))
}

// PutJob upserts rec.
func (s *BoltStore) PutJob(rec *JobRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(jobKey(rec.JobID), data)
	})
}

// GetJob retrieves the record for jobID.
func (s *BoltStore) GetJob(jobID uint32) (*JobRecord, error) {
	var rec JobRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get(jobKey(jobID))
		if data == nil {
			return fmt.Errorf("job not found: %d", jobID)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListJobs returns every record in the ledger, for crash-recovery sweeps
// over basepath on daemon start.
func (s *BoltStore) ListJobs() ([]*JobRecord, error) {
	var recs []*JobRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var rec JobRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	return recs, err
}

// DeleteJob removes jobID's record, called once its namespace has been
// torn down.
func (s *BoltStore) DeleteJob(jobID uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.Delete(jobKey(jobID))
	})
}
