package transport

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionrun/bastion/pkg/credential"
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

// syntheticArg builds an Arg carrying a uuid-derived username, so table
// cases that build many credentials in the same test run never collide on
// identity even though there's no real scheduler assigning them.
func syntheticArg(jobID uint32) *credential.Arg {
	return &credential.Arg{
		Step:      types.StepID{JobID: jobID, StepID: 0},
		Identity:  types.Identity{UID: 1000, GID: 1000, UserName: uuid.NewString()},
		JobNHosts: 1,
		JobHosts:  "node00",
	}
}

func TestHandlerShipAcceptsValidCredential(t *testing.T) {
	initTestFacade(t)

	jc, err := credential.Build(syntheticArg(7), true, 1)
	require.NoError(t, err)
	body, sig := jc.Parts()

	h := NewHandler("test")
	resp, err := h.Ship(context.Background(), &ShipRequest{Version: 1, Body: body, Sig: sig})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Empty(t, resp.Reason)
}

func TestHandlerShipRejectsCorruptBody(t *testing.T) {
	initTestFacade(t)

	jc, err := credential.Build(syntheticArg(8), true, 1)
	require.NoError(t, err)
	body, sig := jc.Parts()
	body[0] ^= 0xff

	h := NewHandler("test")
	resp, err := h.Ship(context.Background(), &ShipRequest{Version: 1, Body: body, Sig: sig})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.NotEmpty(t, resp.Reason)
}

func TestHandlerShipRejectsUnsignedCredential(t *testing.T) {
	initTestFacade(t)

	jc, err := credential.Build(syntheticArg(9), false, 1)
	require.NoError(t, err)
	body, sig := jc.Parts()

	h := NewHandler("test")
	resp, err := h.Ship(context.Background(), &ShipRequest{Version: 1, Body: body, Sig: sig})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
}
