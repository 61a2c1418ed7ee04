package devsign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/types"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	sig, err := p.Sign([]byte("hello"))
	require.NoError(t, err)
	assert.NoError(t, p.VerifySign([]byte("hello"), sig))
	assert.Error(t, p.VerifySign([]byte("hellp"), sig))
}

func TestCreateUnpackRoundTrip(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	arg := &signer.CredentialArg{
		Step:     types.StepID{JobID: 100, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000, UserName: "alice", GIDs: []uint32{1000, 27}},
		Created:  time.Now().UTC(),
		Body:     []byte("payload"),
	}

	body, sig, err := p.Create(arg, true, 1)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	got, err := p.Unpack(body, sig, 1)
	require.NoError(t, err)
	assert.Equal(t, arg.Step.JobID, got.Step.JobID)
	assert.Equal(t, arg.Identity.UID, got.Identity.UID)
	assert.Equal(t, arg.Identity.UserName, got.Identity.UserName)
	assert.Equal(t, arg.Body, got.Body)
}

func TestUnpackRejectsVersionMismatch(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	arg := &signer.CredentialArg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: 1, GID: 1},
		Created:  time.Now().UTC(),
	}
	body, sig, err := p.Create(arg, true, 1)
	require.NoError(t, err)

	_, err = p.Unpack(body, sig, 2)
	assert.Error(t, err)
}

func TestUnpackRejectsTamperedSignature(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	arg := &signer.CredentialArg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: 1, GID: 1},
		Created:  time.Now().UTC(),
	}
	body, sig, err := p.Create(arg, true, 1)
	require.NoError(t, err)
	sig[0] ^= 0xff

	_, err = p.Unpack(body, sig, 1)
	assert.Error(t, err)
}

func TestCreateRejectsNobodyIdentity(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	arg := &signer.CredentialArg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: types.NobodyID, GID: 1},
		Created:  time.Now().UTC(),
	}
	_, _, err = p.Create(arg, true, 1)
	assert.Error(t, err)
}

func TestNetCredRoundTrip(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	blob, err := p.CreateNetCred(&signer.NetCredArg{Addrs: []string{"10.0.0.1", "10.0.0.2"}}, 1)
	require.NoError(t, err)

	got, err := p.ExtractNetCred(blob, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, got.Addrs)
}

func TestNetCredRejectsTamperedBlob(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	blob, err := p.CreateNetCred(&signer.NetCredArg{Addrs: []string{"10.0.0.1"}}, 1)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff

	_, err = p.ExtractNetCred(blob, 1)
	assert.Error(t, err)
}

func TestNewFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	p1, err := NewFromSeed(seed)
	require.NoError(t, err)
	p2, err := NewFromSeed(seed)
	require.NoError(t, err)

	sig, err := p1.Sign([]byte("x"))
	require.NoError(t, err)
	assert.NoError(t, p2.VerifySign([]byte("x"), sig))
}
