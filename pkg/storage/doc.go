/*
Package storage provides a BoltDB-backed crash-recovery ledger for the
namespace engine.

Each successful nsengine.Engine.Create writes a "ready" JobRecord after the
namespace is set up and before returning; a successful Delete removes it
after the job directory has been torn down. On daemon restart, ListJobs
lets the caller reconcile the ledger against the job directories actually
present under basepath: a record with no directory means the daemon
stopped between teardown and the ledger delete, and a directory with no
record belongs to a Create that did not complete (or whose ledger write
failed). The ledger itself does not decide which directories to remove.

# Usage

	store, err := storage.NewBoltStore("/var/lib/bastion")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	store.PutJob(&storage.JobRecord{JobID: jobID, State: "ready", CreatedAt: time.Now()})
	recs, err := store.ListJobs()
	store.DeleteJob(jobID)

# See Also

  - pkg/nsengine for the state machine the ledger mirrors
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
