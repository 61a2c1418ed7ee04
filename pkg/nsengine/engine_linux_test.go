//go:build linux

package nsengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// These exercise the real mount-namespace lifecycle and therefore require
// CAP_SYS_ADMIN. They are skipped outside a root/privileged CI runner.
func requireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("namespace lifecycle tests require root")
	}
}

func TestCreateJoinDeleteLifecycle(t *testing.T) {
	requireRoot(t)

	base := filepath.Join(t.TempDir(), "ns")
	require.NoError(t, PrepareBase(base, true))
	t.Cleanup(func() { ShutdownBase(base) })

	e := New(base, "")
	const jobID = uint32(1001)

	st, err := e.State(jobID)
	require.NoError(t, err)
	require.Equal(t, Absent, st)

	require.NoError(t, e.Create(context.Background(), jobID))

	require.NoError(t, e.Join(jobID, uint32(os.Getuid())))

	// Idempotent: a second Create on an already-ready job is a no-op.
	require.NoError(t, e.Create(context.Background(), jobID))

	st, err = e.State(jobID)
	require.NoError(t, err)
	require.Equal(t, Ready, st)

	require.NoError(t, e.Delete(jobID))

	st, err = e.State(jobID)
	require.NoError(t, err)
	require.Equal(t, Absent, st)
}

func TestJoinZeroJobIDIsNoop(t *testing.T) {
	base := filepath.Join(t.TempDir(), "ns")
	e := New(base, "")
	require.NoError(t, e.Join(0, 0))
}
