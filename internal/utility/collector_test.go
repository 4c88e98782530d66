package utility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hasherworker"
	"github.com/capacitymesh/ccp/internal/store"
)

func proofWithNonce(globalNonce byte) hasherworker.ProofFound {
	var nonce ccptypes.Hash32
	nonce[0] = globalNonce
	return hasherworker.ProofFound{
		CoreID: 0,
		Proof: ccptypes.RawProof{
			Epoch: ccptypes.EpochParameters{GlobalNonce: nonce},
		},
	}
}

func TestProofIdxIncrementsWithinSameGlobalNonce(t *testing.T) {
	dir := t.TempDir()
	c := New(store.NewProofStore(dir), nil)
	go c.Run()
	defer c.Stop()

	// Two distinct proofs (different result hashes) under the same global
	// nonce; identical deliveries are deduplicated, see
	// TestDuplicateProofIsNotDoubleCounted.
	first := proofWithNonce(1)
	second := proofWithNonce(1)
	second.Proof.ResultHash[0] = 1
	c.in <- first
	c.in <- second
	time.Sleep(50 * time.Millisecond)

	proofs, err := store.NewProofStore(dir).After(0)
	require.NoError(t, err)
	require.Len(t, proofs, 2)
	assert.Equal(t, ccptypes.ProofIdx(0), proofs[0].ID.Idx)
	assert.Equal(t, ccptypes.ProofIdx(1), proofs[1].ID.Idx)
}

func TestProofIdxResetsOnlyOnGlobalNonceChange(t *testing.T) {
	dir := t.TempDir()
	c := New(store.NewProofStore(dir), nil)
	go c.Run()
	defer c.Stop()

	c.in <- proofWithNonce(1)
	c.in <- proofWithNonce(1)
	time.Sleep(20 * time.Millisecond)

	// A real epoch transition always runs CleanProofCache first; do the
	// same here before feeding a proof under the new global nonce.
	require.NoError(t, c.CleanProofCache())
	c.in <- proofWithNonce(2)
	time.Sleep(20 * time.Millisecond)

	proofs, err := store.NewProofStore(dir).After(0)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Equal(t, ccptypes.ProofIdx(0), proofs[0].ID.Idx)
	assert.Equal(t, byte(2), proofs[0].ID.GlobalNonce[0])
}

func TestDuplicateProofIsNotDoubleCounted(t *testing.T) {
	dir := t.TempDir()
	c := New(store.NewProofStore(dir), nil)
	go c.Run()
	defer c.Stop()

	p := proofWithNonce(1)
	c.in <- p
	c.in <- p
	time.Sleep(50 * time.Millisecond)

	proofs, err := store.NewProofStore(dir).After(0)
	require.NoError(t, err)
	assert.Len(t, proofs, 1)
}

func TestErrorHappenedRoutesToErrorSink(t *testing.T) {
	var gotCore ccptypes.LogicalCoreId
	var gotFatal bool
	sink := func(core ccptypes.LogicalCoreId, err error, fatal bool) {
		gotCore = core
		gotFatal = fatal
	}

	c := New(store.NewProofStore(t.TempDir()), sink)
	go c.Run()
	defer c.Stop()

	c.in <- hasherworker.ErrorHappened{CoreID: 3, Err: assertErr{}, Fatal: true}
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, ccptypes.LogicalCoreId(3), gotCore)
	assert.True(t, gotFatal)
}

func TestCleanProofCacheResetsIndexAndClearsProofs(t *testing.T) {
	dir := t.TempDir()
	c := New(store.NewProofStore(dir), nil)
	go c.Run()
	defer c.Stop()

	c.in <- proofWithNonce(1)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, c.CleanProofCache())

	proofs, err := store.NewProofStore(dir).After(0)
	require.NoError(t, err)
	assert.Empty(t, proofs)

	c.in <- proofWithNonce(1)
	time.Sleep(20 * time.Millisecond)
	proofs, err = store.NewProofStore(dir).After(0)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Equal(t, ccptypes.ProofIdx(0), proofs[0].ID.Idx)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
