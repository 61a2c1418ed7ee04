// Package storage provides a crash-recovery ledger of per-job namespace
// state, so a restarted daemon can tell which job directories under its
// basepath were fully created versus abandoned mid-handshake.
package storage

import "time"

// JobRecord is the persisted record of a namespace engine Create call.
type JobRecord struct {
	JobID     uint32    `json:"job_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger defines the persistence contract for job namespace records. It is
// implemented by BoltStore.
type Ledger interface {
	PutJob(rec *JobRecord) error
	GetJob(jobID uint32) (*JobRecord, error)
	ListJobs() ([]*JobRecord, error)
	DeleteJob(jobID uint32) error
	Close() error
}
