// Package bcast implements file-broadcast credentials: a lighter envelope
// than pkg/credential's job credential, used to authorize the multiple
// sbcast data blocks (and an optional shared-object transfer) that make up
// one file broadcast. Because the signer may only be safely called once
// per credential without looking like a replay, verification of block 2+
// and SO transfers is served from an in-memory replay cache keyed by a
// non-cryptographic hash of the signature.
package bcast

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bastionrun/bastion/pkg/metrics"
	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/types"
	"github.com/bastionrun/bastion/pkg/wire"
)

// metricsKind is the "kind" label value pkg/metrics' credential counters
// use for bcast credentials, as opposed to job or net credentials.
const metricsKind = "bcast"

// Errors surfaced to callers.
var (
	ErrInvalidArgument = errors.New("bcast: invalid argument")
	ErrExpired         = errors.New("bcast: expired")
	ErrSignFailed      = errors.New("bcast: sign failed")
	ErrReplayRejected  = errors.New("bcast: replay rejected")
)

// Flags modify how a block is verified.
type Flags uint8

// SO marks a shared-object transfer, which is always served from the
// replay cache rather than fully verified.
const SO Flags = 1 << 0

// Arg is the input bundle for Build.
type Arg struct {
	Step     types.StepID
	Identity types.Identity
	Nodes    []string
	Expiry   time.Time
}

// Credential is an immutable-after-signing file-broadcast credential.
type Credential struct {
	step     types.StepID
	identity types.Identity
	nodes    []string
	expiry   time.Time
	body     []byte
	sig      []byte
	verified bool
}

// Build serializes a canonical body excluding the signature, signs it, and
// attaches the signature. A partial credential is discarded if signing
// fails.
func Build(arg *Arg) (*Credential, error) {
	if arg == nil {
		return nil, fmt.Errorf("%w: nil arg", ErrInvalidArgument)
	}
	if arg.Identity.IsNobody() {
		return nil, fmt.Errorf("%w: nobody identity", ErrInvalidArgument)
	}

	f := signer.Get()
	if f == nil {
		return nil, signer.ErrNotInitialized
	}

	body := encodeBody(arg, 1)
	sig, err := f.Sign(body)
	if err != nil {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "sign_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
	}

	metrics.CredentialsIssued.WithLabelValues(metricsKind).Inc()
	return &Credential{
		step:     arg.Step,
		identity: arg.Identity,
		nodes:    arg.Nodes,
		expiry:   arg.Expiry,
		body:     body,
		sig:      sig,
		verified: true,
	}, nil
}

// Unpack decodes and cryptographically verifies a bcast credential
// received off the wire, producing a Credential ready for Cache.Extract.
// Grounded on pkg/credential.Unpack's decode-then-trust-the-façade shape.
func Unpack(body, sig []byte, version uint16) (*Credential, error) {
	f := signer.Get()
	if f == nil {
		return nil, signer.ErrNotInitialized
	}

	arg, err := f.SbcastUnpack(body, sig, version)
	if err != nil {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "decode_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return &Credential{
		step:     arg.Step,
		identity: arg.Identity,
		nodes:    arg.Nodes,
		expiry:   arg.Expiry,
		body:     arg.Body,
		sig:      arg.Sig,
		verified: true,
	}, nil
}

func encodeBody(arg *Arg, version uint16) []byte {
	b := wire.NewBuffer()
	b.PutUint32(uint32(version))
	b.PutUint32(arg.Step.JobID)
	b.PutUint32(arg.Step.StepID)
	var hetJobID uint32
	hasHetJob := arg.Step.HetJobID != nil
	if hasHetJob {
		hetJobID = *arg.Step.HetJobID
	}
	b.PutBool(hasHetJob)
	b.PutUint32(hetJobID)
	b.PutUint32(arg.Identity.UID)
	b.PutUint32(arg.Identity.GID)
	b.PutString(arg.Identity.UserName)
	b.PutUint32Array(arg.Identity.GIDs)
	b.PutStringArray(arg.Nodes)
	b.PutTime(arg.Expiry)
	return b.Bytes()
}

// String renders a human-readable debug dump, the Go equivalent of
// print_sbcast_cred.
func (c *Credential) String() string {
	return fmt.Sprintf("bcast.Credential{step=%s uid=%d gid=%d nodes=%v expiry=%s verified=%t}",
		c.step, c.identity.UID, c.identity.GID, c.nodes, c.expiry.Format(time.RFC3339), c.verified)
}

// Hash32 computes the replay-cache key over sig: the sum of 16-bit
// chunks, each taking its first byte as the high-order byte (so
// {0x01, 0x02, 0x03} sums 0x0102 + 0x0300 = 0x0402), with the last chunk
// zero-padded if the signature length is odd. This
// is intentionally a non-cryptographic checksum, not a hash function —
// caches written by one peer must remain readable by another, so the
// definition must never change.
func Hash32(sig []byte) uint32 {
	var sum uint32
	for i := 0; i < len(sig); i += 2 {
		hi := sig[i]
		var lo byte
		if i+1 < len(sig) {
			lo = sig[i+1]
		}
		sum += uint32(hi)<<8 | uint32(lo)
	}
	return sum
}

type cacheEntry struct {
	expiry time.Time
	hash   uint32
}

// Cache is the process-wide replay cache: insertions append, lookups scan
// front-to-back and lazily remove expired entries, serialized by a single
// lock to prevent a TOCTOU window between "not in cache" and "insert".
type Cache struct {
	mu      sync.Mutex
	entries []cacheEntry
}

// NewCache returns an empty replay cache.
func NewCache() *Cache {
	return &Cache{}
}

// Extract implements the replay algorithm: block 1 of a non-SO transfer is
// fully verified against the signer and cached; every other call is
// accepted only against a matching cache entry.
func (c *Cache) Extract(cred *Credential, blockNo uint16, flags Flags) (*Arg, error) {
	if cred == nil {
		return nil, fmt.Errorf("%w: nil credential", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	if now.After(cred.expiry) {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "expired").Inc()
		return nil, ErrExpired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if blockNo == 1 && flags&SO == 0 {
		if !cred.verified {
			metrics.CredentialsRejected.WithLabelValues(metricsKind, "unverified").Inc()
			return nil, fmt.Errorf("%w: unverified credential", ErrReplayRejected)
		}
		c.entries = append(c.entries, cacheEntry{expiry: cred.expiry, hash: Hash32(cred.sig)})
	} else {
		hash := Hash32(cred.sig)
		found := false
		live := c.entries[:0]
		for _, e := range c.entries {
			if e.expiry.Compare(now) <= 0 {
				continue // lazy GC: drop expired entries during the scan
			}
			live = append(live, e)
			if !found && e.expiry.Equal(cred.expiry) && e.hash == hash {
				found = true
			}
		}
		c.entries = live
		if !found {
			metrics.BcastReplayRejections.Inc()
			return nil, ErrReplayRejected
		}
	}

	if cred.identity.IsNobody() {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "nobody_identity").Inc()
		return nil, fmt.Errorf("%w: nobody identity", ErrInvalidArgument)
	}

	metrics.CredentialsVerified.WithLabelValues(metricsKind).Inc()
	return &Arg{
		Step:     cred.step,
		Identity: cred.identity,
		Nodes:    append([]string(nil), cred.nodes...),
		Expiry:   cred.expiry,
	}, nil
}

// Len reports the number of live entries, used by pkg/metrics for the
// replay-cache size gauge. It does not perform GC.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
