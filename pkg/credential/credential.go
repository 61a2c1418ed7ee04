// Package credential implements job-launch credentials: an immutable-
// after-signing record carrying step identity, principal identity, job
// resource allocations in run-length form, and a detached signature. It is
// the subsystem a compute node trusts to authorize launching work on
// behalf of a user.
package credential

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bastionrun/bastion/pkg/gres"
	"github.com/bastionrun/bastion/pkg/hostlist"
	"github.com/bastionrun/bastion/pkg/metrics"
	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/types"
)

// metricsKind is the "kind" label value pkg/metrics' credential counters
// use for job credentials, as opposed to bcast or net credentials.
const metricsKind = "job"

// Errors surfaced to callers, matching the operational/contract error
// vocabulary a credential may return.
var (
	ErrInvalidArgument  = errors.New("credential: invalid argument")
	ErrInvalidCredential = errors.New("credential: invalid credential")
	ErrCredentialExpired = errors.New("credential: expired")
	ErrHostNotInList     = errors.New("credential: host not in list")
	ErrIndexOutOfRange   = errors.New("credential: index out of range")
	ErrGresMissing       = errors.New("credential: gres allocation missing")
	ErrSignFailed        = errors.New("credential: sign failed")
)

const magic = 0xc0de5191

// Arg is the argument bundle used to build a JobCredential: the raw inputs
// the scheduler assembles before handing off to the signer.
type Arg struct {
	Step     types.StepID
	Identity types.Identity

	JobNHosts  uint32
	JobHosts   string // compressed host range expression
	StepHosts  string // compressed host range expression, empty for batch

	Cores types.RunLength

	JobCoreBitmap  []bool // flattened socket x core space
	StepCoreBitmap []bool

	JobMem  types.MemAlloc
	StepMem types.MemAlloc

	JobGres  gres.List
	StepGres gres.List
}

// validate rejects contract violations: nobody identity and inconsistent
// run-length vectors.
func (a *Arg) validate() error {
	if a.Identity.IsNobody() {
		return fmt.Errorf("%w: nobody identity", ErrInvalidArgument)
	}
	var sum uint32
	for _, r := range a.Cores.RepCount {
		sum += r
	}
	if len(a.Cores.RepCount) > 0 && sum < a.JobNHosts {
		return fmt.Errorf("%w: sock_core_rep_count sum %d below job_nhosts %d", ErrInvalidArgument, sum, a.JobNHosts)
	}
	return nil
}

// JobCredential is an immutable-after-signing job-launch credential. All
// public accessors that return a view into the credential require the
// caller to have acquired the read lock (Verify returns a release
// closure for exactly this purpose).
type JobCredential struct {
	mu sync.RWMutex

	arg     Arg
	created time.Time
	expiry  time.Time

	body []byte
	sig  []byte

	verified bool
	magic    uint32
}

// Build canonicalizes arg, computes core_array_size, and hands the
// finalized argument to the façade to produce the encoded body and,
// if sign is true, a signature. uid/gid "nobody" is rejected before any
// signer call.
func Build(arg *Arg, sign bool, version uint16) (*JobCredential, error) {
	if arg == nil {
		return nil, fmt.Errorf("%w: nil arg", ErrInvalidArgument)
	}
	if err := arg.validate(); err != nil {
		return nil, err
	}

	f := signer.Get()
	if f == nil {
		return nil, signer.ErrNotInitialized
	}

	// core_array_size: the number of run entries actually consumed by
	// job_nhosts. Computed for validation/logging; the run-length vectors
	// themselves are carried as-is into the signed body.
	_ = arg.Cores.CoreArraySize(arg.JobNHosts)

	created := time.Now().UTC()
	if created.Before(f.RestartTime()) {
		created = f.RestartTime()
	}
	window := f.ExpiryWindow()

	sArg := &signer.CredentialArg{
		Step:     arg.Step,
		Identity: arg.Identity,
		Created:  created,
		Body:     encodeArgBody(arg),
	}

	body, sig, err := f.BuildCredential(sArg, sign, version)
	if err != nil {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "sign_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
	}

	jc := &JobCredential{
		arg:      *arg,
		created:  created,
		expiry:   created.Add(window),
		body:     body,
		sig:      sig,
		verified: sign,
		magic:    magic,
	}
	metrics.CredentialsIssued.WithLabelValues(metricsKind).Inc()
	return jc, nil
}

// Verify checks the verified flag and expiry under the read lock and
// returns a borrowed view of the argument plus a release closure the
// caller must invoke exactly once.
func (c *JobCredential) Verify() (*Arg, func(), error) {
	c.mu.RLock()
	if c.magic != magic {
		c.mu.RUnlock()
		panic("credential: use after free")
	}
	if !c.verified {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "unsigned").Inc()
		release := c.mu.RUnlock
		return nil, release, ErrInvalidCredential
	}
	if time.Now().UTC().After(c.expiry) {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "expired").Inc()
		release := c.mu.RUnlock
		return nil, release, ErrCredentialExpired
	}
	metrics.CredentialsVerified.WithLabelValues(metricsKind).Inc()
	return &c.arg, c.mu.RUnlock, nil
}

// Pack writes the detached signature followed by the stored encoded body
// into w. It refuses with an error when the requested version differs from
// builtVersion. The credential does not record the version it was built
// at; builtVersion is whatever the caller passes, and Pack does not check
// it against the stored body.
func (c *JobCredential) Pack(w io.Writer, version uint16, builtVersion uint16) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if version != builtVersion {
		return fmt.Errorf("credential: version mismatch: requested %d, built %d", version, builtVersion)
	}
	if _, err := w.Write(c.sig); err != nil {
		return fmt.Errorf("credential: pack signature: %w", err)
	}
	if _, err := w.Write(c.body); err != nil {
		return fmt.Errorf("credential: pack body: %w", err)
	}
	return nil
}

// Parts returns copies of the encoded body and detached signature, for
// callers that need to ship the two separately (pkg/transport's ShipRequest
// carries them as distinct fields rather than Pack's concatenated stream).
func (c *JobCredential) Parts() (body, sig []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]byte(nil), c.body...), append([]byte(nil), c.sig...)
}

// Unpack decodes a previously packed credential at the given version,
// delegating verification to the façade.
func Unpack(body, sig []byte, version uint16) (*JobCredential, error) {
	f := signer.Get()
	if f == nil {
		return nil, signer.ErrNotInitialized
	}
	sArg, err := f.DecodeCredential(body, sig, version)
	if err != nil {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "decode_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	arg, err := decodeArgBody(sArg.Body)
	if err != nil {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "malformed_body").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	arg.Step = sArg.Step
	arg.Identity = sArg.Identity

	return &JobCredential{
		arg:      *arg,
		created:  sArg.Created,
		expiry:   sArg.Created.Add(f.ExpiryWindow()),
		body:     body,
		sig:      sig,
		verified: true,
		magic:    magic,
	}, nil
}

// CoreAlloc returns the compressed-list core allocation strings for the
// job and the step on the named node.
func (c *JobCredential) CoreAlloc(node string) (jobCores, stepCores string, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hl, err := hostlist.Parse(c.arg.JobHosts)
	if err != nil {
		return "", "", err
	}
	hostIndex, err := hl.IndexOf(node)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrHostNotInList, err)
	}

	window, err := c.arg.Cores.Locate(hostIndex)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
	}

	jobCores = formatBitmapWindow(c.arg.JobCoreBitmap, window)
	stepCores = formatBitmapWindow(c.arg.StepCoreBitmap, window)
	return jobCores, stepCores, nil
}

func formatBitmapWindow(bitmap []bool, w types.HostWindow) string {
	var set []int
	for i := w.First; i < w.Last && int(i) < len(bitmap); i++ {
		if bitmap[i] {
			set = append(set, int(i-w.First))
		}
	}
	return hostlist.FormatCompressedRange(set)
}

// MemAlloc returns the per-host memory allocation for the job and the
// step on the named node. Batch steps use job-memory run index 0
// regardless of node name. A zero or absent step limit falls back to the
// job limit.
func (c *JobCredential) MemAlloc(node string) (jobMem, stepMem uint64, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var jobRunIdx int
	if c.arg.Step.IsBatchScript() {
		jobRunIdx = 0
	} else {
		hl, err := hostlist.Parse(c.arg.JobHosts)
		if err != nil {
			return 0, 0, err
		}
		hostIndex, err := hl.IndexOf(node)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrHostNotInList, err)
		}
		jobRunIdx, err = c.arg.JobMem.RunIndex(hostIndex)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
		}
	}
	if jobRunIdx >= len(c.arg.JobMem.Alloc) {
		return 0, 0, fmt.Errorf("%w: job memory run index %d", ErrIndexOutOfRange, jobRunIdx)
	}
	jobMem = c.arg.JobMem.Alloc[jobRunIdx]

	if c.arg.Step.IsBatchScript() || c.arg.StepHosts == "" {
		return jobMem, jobMem, nil
	}

	shl, err := hostlist.Parse(c.arg.StepHosts)
	if err != nil {
		return 0, 0, err
	}
	stepHostIndex, err := shl.IndexOf(node)
	if err != nil {
		// Step doesn't cover this node: fall back to job limit.
		return jobMem, jobMem, nil
	}
	stepRunIdx, err := c.arg.StepMem.RunIndex(stepHostIndex)
	if err != nil || stepRunIdx >= len(c.arg.StepMem.Alloc) {
		return jobMem, jobMem, nil
	}
	stepMem = c.arg.StepMem.Alloc[stepRunIdx]
	if stepMem == 0 {
		stepMem = jobMem
	}
	return jobMem, stepMem, nil
}

// GRESAlloc delegates to the GRES collaborator for the job's and the
// step's generic-resource allocation on the named node.
func (c *JobCredential) GRESAlloc(node string) (job, step []byte, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hl, err := hostlist.Parse(c.arg.JobHosts)
	if err != nil {
		return nil, nil, err
	}
	hostIndex, err := hl.IndexOf(node)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHostNotInList, err)
	}

	job, err = gres.ExtractJob(c.arg.JobGres, hostIndex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGresMissing, err)
	}
	step, err = gres.ExtractStep(c.arg.StepGres, hostIndex)
	if err != nil {
		// Step GRES is optional; only the job's is mandatory.
		step = nil
	}
	return job, step, nil
}
