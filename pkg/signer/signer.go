// Package signer implements the credential subsystem's signer façade: a
// singleton that loads a Provider at process start and exposes it to every
// other package that needs to sign, verify, build, or unpack a credential.
// The façade itself holds no cryptographic material; it only enforces
// single initialization, a restart-time floor, and the "refuse everything
// before init" contract.
package signer

import (
	"errors"
	"sync"
	"time"

	"github.com/bastionrun/bastion/pkg/types"
)

// Errors returned by façade operations before a Provider is available or
// when a Provider call fails outright.
var (
	ErrNotInitialized = errors.New("signer: not initialized")
	ErrProvider       = errors.New("signer: provider error")
	ErrInvalid        = errors.New("signer: invalid")
)

// CredentialArg is the argument bundle a provider consumes to build a job
// credential and produces back out of unpack. It mirrors the field set in
// the reference implementation's slurm_cred_arg_t, trimmed to what crosses
// the façade boundary: packages above this one (pkg/credential) own the
// richer in-memory representation and only marshal into/out of this shape
// at the façade call.
type CredentialArg struct {
	Step     types.StepID
	Identity types.Identity
	Created  time.Time
	Body     []byte // canonical encoded body, excluding signature
}

// NetCredArg is the argument bundle for the network-credential wrapper.
type NetCredArg struct {
	Addrs []string
	Body  []byte
}

// BcastArg is the argument bundle a provider produces from unpacking a
// bcast (file broadcast) credential buffer.
type BcastArg struct {
	Step     types.StepID
	Identity types.Identity
	Nodes    []string
	Expiry   time.Time
	Body     []byte
	Sig      []byte
}

// Provider is the plugin contract: the seven named operations a concrete
// signing backend must implement. pkg/signer/devsign is the default
// implementation.
type Provider interface {
	// Sign produces an opaque signature over buf.
	Sign(buf []byte) (sig []byte, err error)
	// VerifySign checks sig against buf.
	VerifySign(buf, sig []byte) error
	// Create builds the encoded body for arg and, if sign is true, a
	// signature over it.
	Create(arg *CredentialArg, sign bool, version uint16) (body, sig []byte, err error)
	// Unpack decodes a previously-created body and, on success, verifies
	// its signature, returning the recovered argument.
	Unpack(body, sig []byte, version uint16) (*CredentialArg, error)
	// CreateNetCred builds an opaque address-list blob.
	CreateNetCred(arg *NetCredArg, version uint16) (blob []byte, err error)
	// ExtractNetCred recovers the address list from a blob built by
	// CreateNetCred, rejecting it if the embedded signature is invalid.
	ExtractNetCred(blob []byte, version uint16) (*NetCredArg, error)
	// SbcastUnpack decodes a bcast credential buffer and verifies it.
	SbcastUnpack(body, sig []byte, version uint16) (*BcastArg, error)
}

// DefaultExpiryWindow is the floor applied whenever a shorter window is
// configured, mirroring the reference implementation's 5-second minimum
// credential lifetime.
const DefaultExpiryWindow = 5 * time.Second

// Facade is the process-wide signer singleton.
type Facade struct {
	provider     Provider
	restartTime  time.Time
	expiryWindow time.Duration
}

var (
	once     sync.Once
	instance *Facade
)

// Init loads provider as the process-wide signer, recording the current
// time as the restart-time floor. Init is idempotent: subsequent calls
// return the handle from the first call, regardless of the provider
// argument passed, matching the façade's "idempotent init returning the
// existing handle" contract.
func Init(provider Provider) *Facade {
	return InitWithExpiry(provider, DefaultExpiryWindow)
}

// InitWithExpiry is like Init but additionally pins the credential
// expiry window reported by ExpiryWindow. Values below DefaultExpiryWindow
// are clamped to it.
func InitWithExpiry(provider Provider, expiryWindow time.Duration) *Facade {
	once.Do(func() {
		if expiryWindow < DefaultExpiryWindow {
			expiryWindow = DefaultExpiryWindow
		}
		instance = &Facade{
			provider:     provider,
			restartTime:  time.Now(),
			expiryWindow: expiryWindow,
		}
	})
	return instance
}

// Get returns the initialized façade, or nil if Init has not been called.
func Get() *Facade {
	return instance
}

// RestartTime returns the process start time recorded at Init, used as a
// floor for any credential's observed creation time.
func (f *Facade) RestartTime() time.Time {
	return f.restartTime
}

// ExpiryWindow returns the configured credential verification window.
func (f *Facade) ExpiryWindow() time.Duration {
	if f == nil {
		return DefaultExpiryWindow
	}
	return f.expiryWindow
}

func (f *Facade) checkInit() error {
	if f == nil || f.provider == nil {
		return ErrNotInitialized
	}
	return nil
}

// Sign signs buf using the configured provider.
func (f *Facade) Sign(buf []byte) ([]byte, error) {
	if err := f.checkInit(); err != nil {
		return nil, err
	}
	sig, err := f.provider.Sign(buf)
	if err != nil {
		return nil, errors.Join(ErrProvider, err)
	}
	return sig, nil
}

// Verify verifies sig over buf using the configured provider.
func (f *Facade) Verify(buf, sig []byte) error {
	if err := f.checkInit(); err != nil {
		return err
	}
	if err := f.provider.VerifySign(buf, sig); err != nil {
		return errors.Join(ErrInvalid, err)
	}
	return nil
}

// BuildCredential delegates to the provider to build the encoded body and
// optional signature for arg.
func (f *Facade) BuildCredential(arg *CredentialArg, sign bool, version uint16) (body, sig []byte, err error) {
	if err := f.checkInit(); err != nil {
		return nil, nil, err
	}
	body, sig, err = f.provider.Create(arg, sign, version)
	if err != nil {
		return nil, nil, errors.Join(ErrProvider, err)
	}
	return body, sig, nil
}

// DecodeCredential delegates to the provider to decode and verify a
// previously-built credential body.
func (f *Facade) DecodeCredential(body, sig []byte, version uint16) (*CredentialArg, error) {
	if err := f.checkInit(); err != nil {
		return nil, err
	}
	arg, err := f.provider.Unpack(body, sig, version)
	if err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}
	return arg, nil
}

// CreateNetCred delegates to the provider to build a network-credential
// blob.
func (f *Facade) CreateNetCred(arg *NetCredArg, version uint16) ([]byte, error) {
	if err := f.checkInit(); err != nil {
		return nil, err
	}
	blob, err := f.provider.CreateNetCred(arg, version)
	if err != nil {
		return nil, errors.Join(ErrProvider, err)
	}
	return blob, nil
}

// ExtractNetCred delegates to the provider to recover a network-credential
// blob's address list.
func (f *Facade) ExtractNetCred(blob []byte, version uint16) (*NetCredArg, error) {
	if err := f.checkInit(); err != nil {
		return nil, err
	}
	arg, err := f.provider.ExtractNetCred(blob, version)
	if err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}
	return arg, nil
}

// SbcastUnpack delegates to the provider to decode and verify a bcast
// credential body.
func (f *Facade) SbcastUnpack(body, sig []byte, version uint16) (*BcastArg, error) {
	if err := f.checkInit(); err != nil {
		return nil, err
	}
	arg, err := f.provider.SbcastUnpack(body, sig, version)
	if err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}
	return arg, nil
}

// ResetForTest clears the singleton so tests in other packages can Init a
// fresh provider per test case without cross-test state leaking through
// sync.Once.
func ResetForTest() {
	once = sync.Once{}
	instance = nil
}
