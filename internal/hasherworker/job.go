package hasherworker

import (
	"crypto/rand"
	"time"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hashrate"
	"github.com/capacitymesh/ccp/internal/randomx"
)

// job is the sync thread's in-flight CCJob state (§4.3's CCJob{job}).
type job struct {
	handle     randomx.DatasetHandle
	flags      randomx.Flags
	epoch      ccptypes.EpochParameters
	cuID       ccptypes.CUID
	vm         randomx.VM
	localNonce ccptypes.LocalNonce
}

func newJob(allocator randomx.Allocator, handle randomx.DatasetHandle, flags randomx.Flags, epoch ccptypes.EpochParameters, cuID ccptypes.CUID) (*job, error) {
	vm, err := allocator.NewFastVM(handle, flags)
	if err != nil {
		return nil, err
	}

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}

	return &job{
		handle:     handle,
		flags:      flags,
		epoch:      epoch,
		cuID:       cuID,
		vm:         vm,
		localNonce: ccptypes.NewLocalNonce(seed),
	}, nil
}

// closeJob releases j's VM, if any. It is a no-op on nil, so callers can
// call it unconditionally when replacing or dropping the active job.
func closeJob(j *job) {
	if j == nil {
		return
	}
	_ = j.vm.Close()
}

// runRound executes exactly HashesPerRound hashes (§4.3's "hash round"),
// pushing any golden result found along the way to toUtility, and reports a
// CheckedHashes hashrate record when done. It returns the job with its
// localNonce advanced by HashesPerRound, ready for the next round.
func runRound(j *job, core ccptypes.LogicalCoreId, toUtility chan<- ToUtility) *job {
	start := time.Now()
	difficulty := j.epoch.Difficulty

	nonceBytes := j.localNonce.Bytes()
	j.vm.HashFirst(nonceBytes[:])

	for i := 0; i < HashesPerRound; i++ {
		j.localNonce = j.localNonce.Next()

		var result [32]byte
		if i < HashesPerRound-1 {
			nb := j.localNonce.Bytes()
			result = j.vm.HashNext(nb[:])
		} else {
			result = j.vm.HashLast()
		}

		// The streaming API pipelines nonce i+1 with the finalization of
		// nonce i, so `result` is for the PREVIOUS local_nonce value, not
		// the one we just advanced to.
		if ccptypes.ResultHash(result).Less(difficulty) {
			provenNonce := j.localNonce.Prev()
			toUtility <- ProofFound{
				CoreID: core,
				Proof: ccptypes.RawProof{
					Epoch:      j.epoch,
					LocalNonce: provenNonce,
					CUID:       j.cuID,
					ResultHash: ccptypes.ResultHash(result),
				},
			}
		}
	}

	toUtility <- HashrateReport{
		CoreID: core,
		Record: hashrate.CheckedHashes(j.epoch, core, time.Since(start), HashesPerRound),
	}

	return j
}
