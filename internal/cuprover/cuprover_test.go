package cuprover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hasherworker"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
	"github.com/capacitymesh/ccp/internal/simrandomx"
	"github.com/capacitymesh/ccp/internal/topology"
)

func twoCoreTopology() *topology.Topology {
	return topology.New(map[ccptypes.PhysicalCoreId][]ccptypes.LogicalCoreId{
		0: {0, 1},
		1: {2, 3},
	})
}

func drainNonBlocking(ch <-chan hasherworker.ToUtility) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestCreateFailsOnUnknownPhysicalCore(t *testing.T) {
	top := twoCoreTopology()
	toUtility := make(chan hasherworker.ToUtility, 64)

	_, err := Create(top, topology.Optimal{}, 99, randomx.Flags{}, simrandomx.NewAllocator(), pin.NoopPinner{}, toUtility)
	require.Error(t, err)
	var topErr *TopologyError
	require.ErrorAs(t, err, &topErr)
}

func TestCreateStartsIdleWithOneWorkerPerLogicalCore(t *testing.T) {
	top := twoCoreTopology()
	toUtility := make(chan hasherworker.ToUtility, 64)

	p, err := Create(top, topology.Optimal{}, 0, randomx.Flags{}, simrandomx.NewAllocator(), pin.NoopPinner{}, toUtility)
	require.NoError(t, err)
	defer p.Stop()

	assert.Equal(t, ccptypes.IdleCUStatus(), p.Status())
	assert.Len(t, p.workers, 2)
}

func TestNewEpochTransitionsToRunning(t *testing.T) {
	top := twoCoreTopology()
	toUtility := make(chan hasherworker.ToUtility, 1024)

	p, err := Create(top, topology.Optimal{}, 0, randomx.Flags{}, simrandomx.NewAllocator(), pin.NoopPinner{}, toUtility)
	require.NoError(t, err)
	defer p.Stop()

	// A zero difficulty accepts no hash: the running job emits only
	// CheckedHashes reports, so the workers never block on a full channel
	// and the deferred Stop can join them.
	var nonce, difficulty ccptypes.Hash32
	nonce[0] = 1
	epoch := ccptypes.EpochParameters{GlobalNonce: nonce, Difficulty: difficulty}
	var cuid ccptypes.CUID
	cuid[0] = 5

	require.NoError(t, p.NewEpoch(epoch, cuid))
	assert.Equal(t, ccptypes.RunningCUStatus(cuid), p.Status())

	select {
	case <-toUtility:
	case <-time.After(2 * time.Second):
		t.Fatal("expected at least one message from the running job")
	}

	drainNonBlocking(toUtility)
}

func TestRepinPreservesDatasetAndMovesWorkers(t *testing.T) {
	top := twoCoreTopology()
	toUtility := make(chan hasherworker.ToUtility, 1024)

	p, err := Create(top, topology.Optimal{}, 0, randomx.Flags{}, simrandomx.NewAllocator(), pin.NoopPinner{}, toUtility)
	require.NoError(t, err)
	defer p.Stop()

	datasetBefore := p.dataset
	require.NoError(t, p.Repin(top, 1))
	assert.Same(t, datasetBefore, p.dataset, "repin must not rebuild the dataset")
	assert.Equal(t, ccptypes.PhysicalCoreId(1), p.PhysicalCore())
}

func TestPauseReturnsToIdle(t *testing.T) {
	top := twoCoreTopology()
	toUtility := make(chan hasherworker.ToUtility, 1024)

	p, err := Create(top, topology.Optimal{}, 0, randomx.Flags{}, simrandomx.NewAllocator(), pin.NoopPinner{}, toUtility)
	require.NoError(t, err)
	defer p.Stop()

	var nonce, difficulty ccptypes.Hash32
	epoch := ccptypes.EpochParameters{GlobalNonce: nonce, Difficulty: difficulty}
	var cuid ccptypes.CUID

	require.NoError(t, p.NewEpoch(epoch, cuid))
	require.NoError(t, p.Pause())
	assert.Equal(t, ccptypes.IdleCUStatus(), p.Status())
}
