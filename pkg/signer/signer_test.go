package signer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/signer/devsign"
	"github.com/bastionrun/bastion/pkg/types"
)

func newFacade(t *testing.T) *signer.Facade {
	t.Helper()
	signer.ResetForTest()
	t.Cleanup(signer.ResetForTest)
	p, err := devsign.New()
	require.NoError(t, err)
	return signer.Init(p)
}

func TestFacadeRefusesBeforeInit(t *testing.T) {
	signer.ResetForTest()
	t.Cleanup(signer.ResetForTest)

	var f *signer.Facade
	_, err := f.Sign([]byte("x"))
	assert.ErrorIs(t, err, signer.ErrNotInitialized)
}

func TestFacadeInitIsIdempotent(t *testing.T) {
	signer.ResetForTest()
	t.Cleanup(signer.ResetForTest)

	p1, err := devsign.New()
	require.NoError(t, err)
	p2, err := devsign.New()
	require.NoError(t, err)

	f1 := signer.Init(p1)
	f2 := signer.Init(p2)
	assert.Same(t, f1, f2)
}

func TestFacadeRestartTimeIsStable(t *testing.T) {
	f := newFacade(t)
	rt := f.RestartTime()
	time.Sleep(time.Millisecond)
	assert.Equal(t, rt, f.RestartTime())
}

func TestFacadeSignVerify(t *testing.T) {
	f := newFacade(t)

	sig, err := f.Sign([]byte("hello"))
	require.NoError(t, err)
	assert.NoError(t, f.Verify([]byte("hello"), sig))
	assert.Error(t, f.Verify([]byte("hellp"), sig))
}

func TestFacadeBuildDecodeCredential(t *testing.T) {
	f := newFacade(t)

	arg := &signer.CredentialArg{
		Step:     types.StepID{JobID: 42, StepID: 0},
		Identity: types.Identity{UID: 500, GID: 500},
		Created:  time.Now().UTC(),
		Body:     []byte("body"),
	}
	body, sig, err := f.BuildCredential(arg, true, 1)
	require.NoError(t, err)

	got, err := f.DecodeCredential(body, sig, 1)
	require.NoError(t, err)
	assert.Equal(t, arg.Step.JobID, got.Step.JobID)
}
