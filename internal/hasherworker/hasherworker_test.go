package hasherworker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hashrate"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
	"github.com/capacitymesh/ccp/internal/simrandomx"
)

func testEpoch() ccptypes.EpochParameters {
	var nonce, difficulty ccptypes.Hash32
	nonce[0] = 1
	// A zero difficulty accepts no hash, so a running job emits only one
	// CheckedHashes report per round and never fills the S→U channel with
	// ProofFound messages while a test is not reading it.
	return ccptypes.EpochParameters{GlobalNonce: nonce, Difficulty: difficulty}
}

func TestFacadeCreateCacheAllocateAndInitializeDataset(t *testing.T) {
	toUtility := make(chan ToUtility, 64)
	w := New(0, toUtility, simrandomx.NewAllocator(), pin.NoopPinner{})
	defer w.Stop()

	epoch := testEpoch()
	var cuid ccptypes.CUID
	cuid[0] = 7

	cache, err := w.CreateCache(epoch, cuid, randomx.Flags{})
	require.NoError(t, err)
	require.NotNil(t, cache)

	dataset, err := w.AllocateDataset(randomx.Flags{})
	require.NoError(t, err)
	require.NotNil(t, dataset)

	err = w.InitializeDataset(epoch, cache, dataset, 0, dataset.ItemsCount())
	require.NoError(t, err)

	var report HashrateReport
	var sawCacheCreation, sawDatasetInit bool
	for i := 0; i < 2; i++ {
		select {
		case m := <-toUtility:
			report, _ = m.(HashrateReport)
			switch report.Record.Kind {
			case hashrate.RecordCacheCreation:
				sawCacheCreation = true
			case hashrate.RecordDatasetInitialization:
				sawDatasetInit = true
			}
		case <-time.After(time.Second):
			t.Fatal("expected two hashrate reports")
		}
	}
	assert.True(t, sawCacheCreation)
	assert.True(t, sawDatasetInit)
}

func TestFacadeNewCCJobProducesHashrateReports(t *testing.T) {
	toUtility := make(chan ToUtility, 1024)
	allocator := simrandomx.NewAllocator()
	w := New(0, toUtility, allocator, pin.NoopPinner{})
	defer w.Stop()

	epoch := testEpoch()
	var cuid ccptypes.CUID
	cuid[0] = 3

	cache, err := w.CreateCache(epoch, cuid, randomx.Flags{})
	require.NoError(t, err)
	dataset, err := w.AllocateDataset(randomx.Flags{})
	require.NoError(t, err)
	require.NoError(t, w.InitializeDataset(epoch, cache, dataset, 0, dataset.ItemsCount()))

	// Drain the two setup reports before starting the job.
	<-toUtility
	<-toUtility

	w.NewCCJob(dataset.Handle(), randomx.Flags{}, epoch, cuid)

	select {
	case m := <-toUtility:
		report, ok := m.(HashrateReport)
		require.True(t, ok, "expected a HashrateReport, got %T", m)
		assert.Equal(t, HashesPerRound, report.Record.HashesCount)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a CheckedHashes report from the running job")
	}
}

func TestFacadePauseStopsHashing(t *testing.T) {
	toUtility := make(chan ToUtility, 1024)
	allocator := simrandomx.NewAllocator()
	w := New(0, toUtility, allocator, pin.NoopPinner{})
	defer w.Stop()

	epoch := testEpoch()
	var cuid ccptypes.CUID
	cache, err := w.CreateCache(epoch, cuid, randomx.Flags{})
	require.NoError(t, err)
	dataset, err := w.AllocateDataset(randomx.Flags{})
	require.NoError(t, err)
	require.NoError(t, w.InitializeDataset(epoch, cache, dataset, 0, dataset.ItemsCount()))
	<-toUtility
	<-toUtility

	w.NewCCJob(dataset.Handle(), randomx.Flags{}, epoch, cuid)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, w.Pause())

	// Drain whatever accumulated, then assert nothing new shows up.
	drained := 0
	for {
		select {
		case <-toUtility:
			drained++
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestFacadePinThreadReportsNonFatalErrorOnFailure(t *testing.T) {
	toUtility := make(chan ToUtility, 8)
	w := New(0, toUtility, simrandomx.NewAllocator(), failingPinner{})
	defer w.Stop()

	w.PinThread(0)

	select {
	case m := <-toUtility:
		errMsg, ok := m.(ErrorHappened)
		require.True(t, ok, "expected ErrorHappened, got %T", m)
		assert.False(t, errMsg.Fatal)
	case <-time.After(time.Second):
		t.Fatal("expected an ErrorHappened message")
	}
}

type failingPinner struct{}

func (failingPinner) Pin(ccptypes.LogicalCoreId) error {
	return assert.AnError
}
