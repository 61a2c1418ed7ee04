package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionrun/bastion/pkg/bcast"
	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/signer/devsign"
	"github.com/bastionrun/bastion/pkg/types"
)

func TestCollectorSamplesCacheSize(t *testing.T) {
	signer.ResetForTest()
	t.Cleanup(signer.ResetForTest)
	p, err := devsign.New()
	require.NoError(t, err)
	signer.Init(p)

	cache := bcast.NewCache()
	cred, err := bcast.Build(&bcast.Arg{
		Step:     types.StepID{JobID: 1, StepID: 0},
		Identity: types.Identity{UID: 1000, GID: 1000},
		Expiry:   time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	_, err = cache.Extract(cred, 1, 0)
	require.NoError(t, err)

	c := NewCollector(cache)
	c.collect()

	assert.Equal(t, float64(1), testutil.ToFloat64(BcastCacheSize))
}
