package netcred

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/signer/devsign"
)

func initTestFacade(t *testing.T) {
	t.Helper()
	signer.ResetForTest()
	t.Cleanup(signer.ResetForTest)
	p, err := devsign.New()
	require.NoError(t, err)
	signer.Init(p)
}

func TestMakeExtractRoundTrip(t *testing.T) {
	initTestFacade(t)
	addrs := []netip.Addr{netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("fe80::1")}

	blob, err := Make(addrs, 1)
	require.NoError(t, err)

	got, err := Extract(blob, 1)
	require.NoError(t, err)
	assert.Equal(t, addrs, got)
}

func TestMakeRejectsEmptyAddrs(t *testing.T) {
	initTestFacade(t)
	_, err := Make(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtractRejectsEmptyBlob(t *testing.T) {
	initTestFacade(t)
	_, err := Extract(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtractFailsBeforeInit(t *testing.T) {
	signer.ResetForTest()
	_, err := Extract([]byte("x"), 1)
	assert.ErrorIs(t, err, signer.ErrNotInitialized)
}
