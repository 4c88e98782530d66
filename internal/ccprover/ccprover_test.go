package ccprover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
	"github.com/capacitymesh/ccp/internal/simrandomx"
	"github.com/capacitymesh/ccp/internal/store"
	"github.com/capacitymesh/ccp/internal/topology"
)

func twoCoreTopology() *topology.Topology {
	return topology.New(map[ccptypes.PhysicalCoreId][]ccptypes.LogicalCoreId{
		0: {0, 1},
		1: {2, 3},
	})
}

func newTestProver(t *testing.T) *CCProver {
	t.Helper()
	proofs := store.NewProofStore(t.TempDir())
	states := store.NewStateStore(t.TempDir())
	return New(twoCoreTopology(), topology.Optimal{}, randomx.Flags{}, simrandomx.NewAllocator(), pin.NoopPinner{}, proofs, states, nil)
}

func epochWithNonce(b byte) ccptypes.EpochParameters {
	var e ccptypes.EpochParameters
	e.GlobalNonce[0] = b
	for i := range e.Difficulty {
		e.Difficulty[i] = 0xff
	}
	return e
}

func TestOnActiveCommitmentCreatesCUProverForNewCore(t *testing.T) {
	p := newTestProver(t)
	defer p.Stop()

	var cu ccptypes.CUID
	cu[0] = 1
	p.OnActiveCommitment(epochWithNonce(1), ccptypes.CUAllocation{0: cu})

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.provers, 1)
	assert.True(t, p.provers[0].Status().IsRunning())
	assert.Equal(t, cu, p.provers[0].Status().CUID)
}

func TestOnActiveCommitmentRemovesCoreDroppedFromAllocation(t *testing.T) {
	p := newTestProver(t)
	defer p.Stop()

	var cu ccptypes.CUID
	cu[0] = 1
	p.OnActiveCommitment(epochWithNonce(1), ccptypes.CUAllocation{0: cu, 1: cu})
	p.OnActiveCommitment(epochWithNonce(1), ccptypes.CUAllocation{0: cu})

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.provers, 1)
	_, stillThere := p.provers[1]
	assert.False(t, stillThere)
}

func TestOnNoActiveCommitmentStopsEveryProverAndClearsState(t *testing.T) {
	p := newTestProver(t)

	var cu ccptypes.CUID
	cu[0] = 1
	p.OnActiveCommitment(epochWithNonce(1), ccptypes.CUAllocation{0: cu})

	require.NoError(t, p.OnNoActiveCommitment())

	p.mu.Lock()
	assert.Empty(t, p.provers)
	assert.Equal(t, ccptypes.IdleCCStatus(), p.status)
	p.mu.Unlock()

	state, err := p.states.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestGetProofsAfterReturnsPersistedProofs(t *testing.T) {
	p := newTestProver(t)
	defer p.Stop()

	require.NoError(t, p.proofs.Put(ccptypes.CCProof{ID: ccptypes.CCProofId{Idx: 0}}))
	require.NoError(t, p.proofs.Put(ccptypes.CCProof{ID: ccptypes.CCProofId{Idx: 1}}))

	proofs, err := p.GetProofsAfter(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Equal(t, ccptypes.ProofIdx(1), proofs[0].ID.Idx)
}

func TestGetProofsAfterHonorsCanceledContext(t *testing.T) {
	p := newTestProver(t)
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetProofsAfter(ctx, 0)
	require.Error(t, err)
}

func TestReallocUtilityCoresPinsEveryCore(t *testing.T) {
	p := newTestProver(t)
	defer p.Stop()

	require.NoError(t, p.ReallocUtilityCores([]uint32{0, 1, 2}))
}

func TestOnActiveCommitmentIsIdempotentForSameEpochAndAllocation(t *testing.T) {
	p := newTestProver(t)
	defer p.Stop()

	var cu ccptypes.CUID
	cu[0] = 1
	epoch := epochWithNonce(1)
	p.OnActiveCommitment(epoch, ccptypes.CUAllocation{0: cu})
	p.OnActiveCommitment(epoch, ccptypes.CUAllocation{0: cu})

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.provers, 1)
}

func TestStopIsSafeAfterOnNoActiveCommitment(t *testing.T) {
	p := newTestProver(t)

	var cu ccptypes.CUID
	cu[0] = 1
	p.OnActiveCommitment(epochWithNonce(1), ccptypes.CUAllocation{0: cu})
	require.NoError(t, p.OnNoActiveCommitment())

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
