package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPutGetDeleteJob(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := &JobRecord{JobID: 7, State: "ready", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.PutJob(rec))

	got, err := store.GetJob(7)
	require.NoError(t, err)
	require.Equal(t, rec.JobID, got.JobID)
	require.Equal(t, rec.State, got.State)

	require.NoError(t, store.DeleteJob(7))
	_, err = store.GetJob(7)
	require.Error(t, err)
}

func TestListJobs(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.PutJob(&JobRecord{JobID: 1, State: "ready"}))
	require.NoError(t, store.PutJob(&JobRecord{JobID: 2, State: "ready"}))

	recs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, recs, 2)
}
