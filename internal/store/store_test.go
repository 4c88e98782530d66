package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

func TestProofStorePutAndAfterSkipsNonNumericFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewProofStore(dir)

	for i := 0; i < 3; i++ {
		var cuid ccptypes.CUID
		cuid[0] = byte(i)
		require.NoError(t, s.Put(ccptypes.CCProof{
			ID:   ccptypes.CCProofId{Idx: ccptypes.ProofIdx(i)},
			CUID: cuid,
		}))
	}
	require.NoError(t, writeJunkFile(dir, "not-a-number"))

	proofs, err := s.After(0)
	require.NoError(t, err)
	require.Len(t, proofs, 2)
	assert.Equal(t, ccptypes.ProofIdx(1), proofs[0].ID.Idx)
	assert.Equal(t, ccptypes.ProofIdx(2), proofs[1].ID.Idx)
}

func TestProofStoreAfterOnMissingDirReturnsEmpty(t *testing.T) {
	s := NewProofStore(filepath.Join(t.TempDir(), "does-not-exist"))
	proofs, err := s.After(0)
	require.NoError(t, err)
	assert.Empty(t, proofs)
}

func TestProofStoreCleanRemovesAndRecreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	s := NewProofStore(dir)
	require.NoError(t, s.Put(ccptypes.CCProof{ID: ccptypes.CCProofId{Idx: 0}}))

	require.NoError(t, s.Clean())

	proofs, err := s.After(0)
	require.NoError(t, err)
	assert.Empty(t, proofs)
}

func TestStateStoreSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStateStore(dir)

	var nonce ccptypes.Hash32
	nonce[0] = 9
	epoch := ccptypes.EpochParameters{GlobalNonce: nonce}
	state := &ccptypes.CCPState{
		EpochParams:  &epoch,
		CUAllocation: ccptypes.CUAllocation{0: ccptypes.CUID{1}},
	}
	require.NoError(t, s.Save(state))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state.EpochParams.GlobalNonce, loaded.EpochParams.GlobalNonce)
	assert.Equal(t, state.CUAllocation, loaded.CUAllocation)
}

func TestStateStoreLoadWithNoFileReturnsNil(t *testing.T) {
	s := NewStateStore(t.TempDir())
	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStateStoreClearPersistsNull(t *testing.T) {
	dir := t.TempDir()
	s := NewStateStore(dir)

	var nonce ccptypes.Hash32
	epoch := ccptypes.EpochParameters{GlobalNonce: nonce}
	require.NoError(t, s.Save(&ccptypes.CCPState{EpochParams: &epoch}))
	require.NoError(t, s.Clear())

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func writeJunkFile(dir, name string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte("not json"), 0o644)
}
