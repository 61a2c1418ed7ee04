// Package types defines the shared data model for the job-credential and
// namespace-isolation subsystems: job/step identity, principal identity, and
// the run-length encoding used to compress per-host socket/core counts
// across a job.
package types

import "fmt"

// BatchScriptStepID is the sentinel step id used for the batch script step
// of a job (as opposed to a normal job step).
const BatchScriptStepID uint32 = 0xfffffffb

// NobodyID is the sentinel uid/gid value meaning "no real identity". A
// credential built for NobodyID is always rejected.
const NobodyID uint32 = 0xfffffffe

// StepID identifies a job step, optionally within a heterogeneous job.
type StepID struct {
	JobID    uint32
	StepID   uint32
	HetJobID *uint32 // nil if the job is not heterogeneous
}

// IsBatchScript reports whether this step id refers to the batch script
// step, which has no step hostlist of its own.
func (s StepID) IsBatchScript() bool {
	return s.StepID == BatchScriptStepID
}

func (s StepID) String() string {
	if s.HetJobID != nil {
		return fmt.Sprintf("%d+%d.%d", s.JobID, *s.HetJobID, s.StepID)
	}
	return fmt.Sprintf("%d.%d", s.JobID, s.StepID)
}

// Identity carries the resolved principal identity attached to a
// credential: uid/gid plus optionally the resolved user name and extended
// supplementary group list.
type Identity struct {
	UID      uint32
	GID      uint32
	UserName string   // empty if not resolved
	GIDs     []uint32 // extended group list, nil if not resolved
}

// IsNobody reports whether either half of the identity is the "nobody"
// sentinel. Credentials must never be built for a nobody identity.
func (id Identity) IsNobody() bool {
	return id.UID == NobodyID || id.GID == NobodyID
}

// RunLength is the three-parallel-array run-length encoding that compresses
// per-host socket/core counts across a job: SocketsPerNode[i] and
// CoresPerSocket[i] describe one "run" of RepCount[i] consecutive hosts
// that all share that socket/core shape.
type RunLength struct {
	SocketsPerNode []uint16
	CoresPerSocket []uint16
	RepCount       []uint32
}

// CoreArraySize returns the number of run entries required to describe
// jobNHosts hosts: the smallest prefix of RepCount whose sum reaches or
// exceeds jobNHosts, advanced by one. This mirrors the core_array_size
// computation in slurm_cred_create: walk the reps, stop as soon as the
// running sum reaches job_nhosts, then use i+1 entries.
func (r RunLength) CoreArraySize(jobNHosts uint32) int {
	if len(r.RepCount) == 0 {
		return 0
	}
	var sum uint32
	i := 0
	for ; i < len(r.RepCount); i++ {
		sum += r.RepCount[i]
		if sum >= jobNHosts {
			break
		}
	}
	return i + 1
}

// HostWindow is the [First, Last) flattened core-bit window owned by one
// host within the run-length-expanded socket x core space.
type HostWindow struct {
	First, Last uint32
}

// Width reports the number of core bits in the window.
func (w HostWindow) Width() uint32 {
	if w.Last <= w.First {
		return 0
	}
	return w.Last - w.First
}

// Locate computes the flattened core-bit window for the given 0-based host
// index, by walking the run-length vectors exactly as format_core_allocs
// does in the reference implementation: each run i contributes
// SocketsPerNode[i]*CoresPerSocket[i] bits per host, for RepCount[i] hosts,
// before the next run begins.
func (r RunLength) Locate(hostIndex int) (HostWindow, error) {
	if hostIndex < 0 {
		return HostWindow{}, fmt.Errorf("types: negative host index %d", hostIndex)
	}
	// host_index is 0-origin on entry; the reference algorithm walks with a
	// 1-origin remaining count.
	remaining := uint32(hostIndex) + 1
	var base uint32
	for i := range r.RepCount {
		perHost := uint32(r.SocketsPerNode[i]) * uint32(r.CoresPerSocket[i])
		if remaining > r.RepCount[i] {
			base += perHost * r.RepCount[i]
			remaining -= r.RepCount[i]
			continue
		}
		first := base + perHost*(remaining-1)
		return HostWindow{First: first, Last: first + perHost}, nil
	}
	return HostWindow{}, fmt.Errorf("types: host index %d out of range of run-length vectors", hostIndex)
}

// MemAlloc is a per-host memory allocation table in run-length form: one
// entry in Alloc per distinct run, each covering RepCount consecutive
// hosts.
type MemAlloc struct {
	Alloc    []uint64
	RepCount []uint32
}

// RunIndex returns the index into Alloc covering the given 0-based host
// index, mirroring slurm_get_rep_count_inx.
func (m MemAlloc) RunIndex(hostIndex int) (int, error) {
	if hostIndex < 0 {
		return -1, fmt.Errorf("types: negative host index %d", hostIndex)
	}
	remaining := uint32(hostIndex) + 1
	for i, rep := range m.RepCount {
		if remaining <= rep {
			return i, nil
		}
		remaining -= rep
	}
	return -1, fmt.Errorf("types: host index %d out of range of memory run-length table", hostIndex)
}
