// Package devsign is the default signer provider: Ed25519 signatures over
// a pkg/wire-framed body. It implements signer.Provider the way the
// reference implementation's "munge" plugin implements the seven-operation
// contract, but with a keypair generated or loaded locally rather than
// delegated to an external daemon — appropriate for development and
// single-trust-domain deployments.
package devsign

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net/netip"

	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/wire"
)

// Provider is an Ed25519-backed signer.Provider.
type Provider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// New generates a fresh Ed25519 keypair.
func New() (*Provider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("devsign: generate key: %w", err)
	}
	return &Provider{pub: pub, priv: priv}, nil
}

// NewFromSeed builds a Provider from a fixed 32-byte seed, for tests and
// deployments that pin a key across restarts.
func NewFromSeed(seed []byte) (*Provider, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("devsign: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Provider{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// Sign implements signer.Provider.
func (p *Provider) Sign(buf []byte) ([]byte, error) {
	return ed25519.Sign(p.priv, buf), nil
}

// VerifySign implements signer.Provider.
func (p *Provider) VerifySign(buf, sig []byte) error {
	if !ed25519.Verify(p.pub, buf, sig) {
		return fmt.Errorf("devsign: signature verification failed")
	}
	return nil
}

// Create implements signer.Provider, encoding arg into the wire body the
// credential package expects and optionally signing it.
func (p *Provider) Create(arg *signer.CredentialArg, sign bool, version uint16) ([]byte, []byte, error) {
	if arg.Identity.IsNobody() {
		return nil, nil, fmt.Errorf("devsign: refusing to build credential for nobody identity")
	}

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
	b.PutTime(arg.Created)
	b.PutBytes(arg.Body)
	body := b.Bytes()

	if !sign {
		return body, nil, nil
	}
	sig, err := p.Sign(body)
	if err != nil {
		return nil, nil, err
	}
	return body, sig, nil
}

// Unpack implements signer.Provider: require sig to verify over body, then
// decode body and return the recovered argument.
func (p *Provider) Unpack(body, sig []byte, version uint16) (*signer.CredentialArg, error) {
	if err := p.VerifySign(body, sig); err != nil {
		return nil, err
	}

	r := wire.NewBufferFromBytes(body)
	gotVersion, err := r.TakeUint32()
	if err != nil {
		return nil, fmt.Errorf("devsign: %w", err)
	}
	if uint16(gotVersion) != version {
		return nil, fmt.Errorf("devsign: version mismatch: body=%d requested=%d", gotVersion, version)
	}

	arg := &signer.CredentialArg{}
	if arg.Step.JobID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	if arg.Step.StepID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	hasHetJob, err := r.TakeBool()
	if err != nil {
		return nil, err
	}
	hetJobID, err := r.TakeUint32()
	if err != nil {
		return nil, err
	}
	if hasHetJob {
		arg.Step.HetJobID = &hetJobID
	}
	if arg.Identity.UID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	if arg.Identity.GID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	if arg.Identity.UserName, err = r.TakeString(); err != nil {
		return nil, err
	}
	if arg.Identity.GIDs, err = r.TakeUint32Array(); err != nil {
		return nil, err
	}
	if arg.Created, err = r.TakeTime(); err != nil {
		return nil, err
	}
	if arg.Body, err = r.TakeBytes(); err != nil {
		return nil, err
	}

	if arg.Identity.IsNobody() {
		return nil, fmt.Errorf("devsign: decoded nobody identity")
	}

	return arg, nil
}

// CreateNetCred implements signer.Provider.
func (p *Provider) CreateNetCred(arg *signer.NetCredArg, version uint16) ([]byte, error) {
	b := wire.NewBuffer()
	b.PutUint32(uint32(version))
	b.PutUint32(uint32(len(arg.Addrs)))
	for _, a := range arg.Addrs {
		b.PutString(a)
	}
	b.PutBytes(arg.Body)
	sig, err := p.Sign(b.Bytes())
	if err != nil {
		return nil, err
	}
	out := wire.NewBuffer()
	out.PutBytes(b.Bytes())
	out.PutBytes(sig)
	return out.Bytes(), nil
}

// ExtractNetCred implements signer.Provider.
func (p *Provider) ExtractNetCred(blob []byte, version uint16) (*signer.NetCredArg, error) {
	r := wire.NewBufferFromBytes(blob)
	body, err := r.TakeBytes()
	if err != nil {
		return nil, fmt.Errorf("devsign: %w", err)
	}
	sig, err := r.TakeBytes()
	if err != nil {
		return nil, fmt.Errorf("devsign: %w", err)
	}
	if err := p.VerifySign(body, sig); err != nil {
		return nil, err
	}

	br := wire.NewBufferFromBytes(body)
	gotVersion, err := br.TakeUint32()
	if err != nil {
		return nil, err
	}
	if uint16(gotVersion) != version {
		return nil, fmt.Errorf("devsign: version mismatch: body=%d requested=%d", gotVersion, version)
	}
	n, err := br.TakeUint32()
	if err != nil {
		return nil, err
	}
	addrs := make([]string, n)
	for i := range addrs {
		if addrs[i], err = br.TakeString(); err != nil {
			return nil, err
		}
		if _, err := netip.ParseAddr(addrs[i]); err != nil {
			return nil, fmt.Errorf("devsign: malformed address %q: %w", addrs[i], err)
		}
	}
	argBody, err := br.TakeBytes()
	if err != nil {
		return nil, err
	}
	return &signer.NetCredArg{Addrs: addrs, Body: argBody}, nil
}

// SbcastUnpack implements signer.Provider: decode and verify a bcast
// credential body built with the same field order the bcast package writes
// in Build.
func (p *Provider) SbcastUnpack(body, sig []byte, version uint16) (*signer.BcastArg, error) {
	if err := p.VerifySign(body, sig); err != nil {
		return nil, err
	}

	r := wire.NewBufferFromBytes(body)
	gotVersion, err := r.TakeUint32()
	if err != nil {
		return nil, fmt.Errorf("devsign: %w", err)
	}
	if uint16(gotVersion) != version {
		return nil, fmt.Errorf("devsign: version mismatch: body=%d requested=%d", gotVersion, version)
	}

	arg := &signer.BcastArg{}
	if arg.Step.JobID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	if arg.Step.StepID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	hasHetJob, err := r.TakeBool()
	if err != nil {
		return nil, err
	}
	hetJobID, err := r.TakeUint32()
	if err != nil {
		return nil, err
	}
	if hasHetJob {
		arg.Step.HetJobID = &hetJobID
	}
	if arg.Identity.UID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	if arg.Identity.GID, err = r.TakeUint32(); err != nil {
		return nil, err
	}
	if arg.Identity.UserName, err = r.TakeString(); err != nil {
		return nil, err
	}
	if arg.Identity.GIDs, err = r.TakeUint32Array(); err != nil {
		return nil, err
	}
	arg.Nodes, err = r.TakeStringArray()
	if err != nil {
		return nil, err
	}
	if arg.Expiry, err = r.TakeTime(); err != nil {
		return nil, err
	}
	arg.Body = body
	arg.Sig = sig
	return arg, nil
}
