package credential

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

func baseArg() *Arg {
	return &Arg{
		Step:      types.StepID{JobID: 42, StepID: 0},
		Identity:  types.Identity{UID: 1000, GID: 1000, UserName: "alice"},
		JobNHosts: 2,
		JobHosts:  "node[00-01]",
		StepHosts: "node[00-01]",
		Cores: types.RunLength{
			SocketsPerNode: []uint16{1, 1},
			CoresPerSocket: []uint16{4, 4},
			RepCount:       []uint32{1, 1},
		},
		JobCoreBitmap:  boolsFromBits("11110000"),
		StepCoreBitmap: boolsFromBits("10100000"),
		JobMem:         types.MemAlloc{Alloc: []uint64{4096, 8192}, RepCount: []uint32{1, 1}},
		StepMem:        types.MemAlloc{Alloc: []uint64{2048, 2048}, RepCount: []uint32{1, 1}},
	}
}

func boolsFromBits(s string) []bool {
	out := make([]bool, len(s))
	for i, c := range s {
		out[i] = c == '1'
	}
	return out
}

func TestBuildDecodeRoundTrip(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()

	jc, err := Build(arg, true, 1)
	require.NoError(t, err)

	view, release, err := jc.Verify()
	require.NoError(t, err)
	assert.Equal(t, arg.Step.JobID, view.Step.JobID)
	release()

	var body, sig []byte
	jc.mu.RLock()
	body, sig = jc.body, jc.sig
	jc.mu.RUnlock()

	decoded, err := Unpack(body, sig, 1)
	require.NoError(t, err)
	dview, release2, err := decoded.Verify()
	require.NoError(t, err)
	defer release2()
	assert.Equal(t, arg.Identity.UID, dview.Identity.UID)
	assert.Equal(t, arg.JobNHosts, dview.JobNHosts)
}

func TestBuildRejectsNobodyIdentity(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()
	arg.Identity.UID = types.NobodyID

	_, err := Build(arg, true, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestVerifyFailsAfterExpiry(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()

	jc, err := Build(arg, true, 1)
	require.NoError(t, err)

	jc.mu.Lock()
	jc.expiry = time.Now().UTC().Add(-time.Second)
	jc.mu.Unlock()

	_, release, err := jc.Verify()
	release()
	assert.ErrorIs(t, err, ErrCredentialExpired)
}

func TestUnpackRejectsTamperedSignature(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()
	jc, err := Build(arg, true, 1)
	require.NoError(t, err)

	jc.mu.RLock()
	body := append([]byte(nil), jc.body...)
	sig := append([]byte(nil), jc.sig...)
	jc.mu.RUnlock()
	sig[0] ^= 0xff

	_, err = Unpack(body, sig, 1)
	assert.Error(t, err)
}

func TestCoreAllocFormatsCompressedRanges(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()
	jc, err := Build(arg, true, 1)
	require.NoError(t, err)

	jobCores, stepCores, err := jc.CoreAlloc("node00")
	require.NoError(t, err)
	assert.Equal(t, "0-3", jobCores)
	assert.Equal(t, "0,2", stepCores)

	jobCores, stepCores, err = jc.CoreAlloc("node01")
	require.NoError(t, err)
	assert.Equal(t, "", jobCores)
	assert.Equal(t, "", stepCores)
}

func TestMemAllocBatchScriptUsesRunIndexZero(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()
	arg.Step.StepID = types.BatchScriptStepID
	jc, err := Build(arg, true, 1)
	require.NoError(t, err)

	jobMem, _, err := jc.MemAlloc("node01")
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), jobMem)
}

func TestMemAllocFallsBackToJobLimit(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()
	arg.StepMem = types.MemAlloc{Alloc: []uint64{0, 0}, RepCount: []uint32{1, 1}}
	jc, err := Build(arg, true, 1)
	require.NoError(t, err)

	jobMem, stepMem, err := jc.MemAlloc("node00")
	require.NoError(t, err)
	assert.Equal(t, jobMem, stepMem)
}

func TestScaleCPUCount(t *testing.T) {
	assert.Equal(t, 4, ScaleCPUCount(4, 8))
	assert.Equal(t, 8, ScaleCPUCount(16, 8))
	assert.Equal(t, 0, ScaleCPUCount(4, 0))
}

func TestFakeSynthesizesGIDs(t *testing.T) {
	initTestFacade(t)
	arg := baseArg()
	arg.Identity.GIDs = nil

	jc, err := Fake(arg)
	require.NoError(t, err)
	view, release, err := jc.Verify()
	require.NoError(t, err)
	defer release()
	assert.NotEmpty(t, view.Identity.GIDs)
}
