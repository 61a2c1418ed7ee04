package bcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/signer/devsign"
	"github.com/bastionrun/bastion/pkg/types"
)

func initTestFacade(t *testing.T) {
	t.Helper()
	signer.ResetForTest()
	t.Cleanup(signer.ResetForTest)
	p, err := devsign.New()
	require.NoError(t, err)
	signer.Init(p)
}

func TestHash32MatchesReferenceExample(t *testing.T) {
	assert.Equal(t, uint32(0x0402), Hash32([]byte{0x01, 0x02, 0x03}))
}

func TestBuildRejectsNobodyIdentity(t *testing.T) {
	initTestFacade(t)
	_, err := Build(&Arg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: types.NobodyID, GID: 1},
		Expiry:   time.Now().Add(time.Minute),
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCacheReplaySequence(t *testing.T) {
	initTestFacade(t)
	cache := NewCache()

	cred, err := Build(&Arg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000},
		Nodes:    []string{"node00"},
		Expiry:   time.Now().Add(time.Minute),
	})
	require.NoError(t, err)

	other, err := Build(&Arg{
		Step:     types.StepID{JobID: 2, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000},
		Nodes:    []string{"node01"},
		Expiry:   time.Now().Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = cache.Extract(cred, 1, 0)
	assert.NoError(t, err)

	_, err = cache.Extract(cred, 2, 0)
	assert.NoError(t, err)

	_, err = cache.Extract(cred, 3, SO)
	assert.NoError(t, err)

	_, err = cache.Extract(other, 2, 0)
	assert.ErrorIs(t, err, ErrReplayRejected)
}

func TestExtractRejectsExpiredCredential(t *testing.T) {
	initTestFacade(t)
	cache := NewCache()

	cred, err := Build(&Arg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000},
		Expiry:   time.Now().Add(-time.Second),
	})
	require.NoError(t, err)

	_, err = cache.Extract(cred, 1, 0)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCacheGCDropsExpiredEntries(t *testing.T) {
	initTestFacade(t)
	cache := NewCache()

	cred, err := Build(&Arg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000},
		Expiry:   time.Now().Add(50 * time.Millisecond),
	})
	require.NoError(t, err)

	_, err = cache.Extract(cred, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	time.Sleep(100 * time.Millisecond)

	other, err := Build(&Arg{
		Step:     types.StepID{JobID: 2, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000},
		Expiry:   time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	_, err = cache.Extract(other, 1, 0)
	require.NoError(t, err)

	// Block-1 insertion only appends; the expired entry is dropped by the
	// next lookup that scans past it.
	_, err = cache.Extract(other, 2, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Len())
}

func TestCredentialStringIncludesStep(t *testing.T) {
	initTestFacade(t)
	cred, err := Build(&Arg{
		Step:     types.StepID{JobID: 7, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000},
		Expiry:   time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Contains(t, cred.String(), "7.0")
}
