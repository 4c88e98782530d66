package hasherworker

import (
	"runtime"
	"time"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hashrate"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
)

// runSyncThread is the Hasher Worker's synchronous body (§4.3): it owns a
// single locked OS thread for its entire life and implements the
// WaitForMessage / NewMessage / CCJob state machine. It never returns until
// a Stop command is processed or cmdCh is closed out from under it.
func runSyncThread(
	core ccptypes.LogicalCoreId,
	cmdCh <-chan Command,
	replyCh chan<- Reply,
	toUtility chan<- ToUtility,
	done chan<- struct{},
	allocator randomx.Allocator,
	pinner pin.Pinner,
) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	var current *job

	for {
		var cmd Command
		var ok bool

		if current == nil {
			// WaitForMessage: nothing to hash, block until the façade sends
			// a command.
			cmd, ok = <-cmdCh
			if !ok {
				return
			}
		} else {
			// CCJob: run one round, then poll the mailbox without blocking
			// so hashing isn't interrupted by an idle façade.
			current = runRound(current, core, toUtility)
			select {
			case cmd, ok = <-cmdCh:
				if !ok {
					return
				}
			default:
				continue
			}
		}

		// NewMessage{cmd}.
		switch c := cmd.(type) {
		case CreateCache:
			start := time.Now()
			key := randomx.CacheKey(c.Epoch.GlobalNonce, c.CUID)
			cache, err := allocator.NewCache(key, c.Flags)
			if err != nil {
				replyCh <- Failed{Err: err}
				break
			}
			toUtility <- HashrateReport{CoreID: core, Record: hashrate.CacheCreation(c.Epoch, core, time.Since(start))}
			replyCh <- CacheCreated{Cache: cache}

		case AllocateDataset:
			dataset, err := allocator.AllocateDataset(c.Flags)
			if err != nil {
				replyCh <- Failed{Err: err}
				break
			}
			replyCh <- DatasetAllocated{Dataset: dataset}

		case InitializeDataset:
			start := time.Now()
			err := c.Dataset.Initialize(c.Cache, c.StartItem, c.ItemsCount)
			if err != nil {
				replyCh <- Failed{Err: err}
				break
			}
			toUtility <- HashrateReport{CoreID: core, Record: hashrate.DatasetInitialization(c.Epoch, core, time.Since(start), c.StartItem, c.ItemsCount)}
			replyCh <- DatasetInitialized{}

		case Pause:
			closeJob(current)
			current = nil
			replyCh <- Paused{}

		case NewCCJob:
			j, err := newJob(allocator, c.Handle, c.Flags, c.Epoch, c.CUID)
			if err != nil {
				toUtility <- ErrorHappened{CoreID: core, Err: err, Fatal: false}
				current = nil
				break
			}
			closeJob(current)
			current = j

		case PinThread:
			if err := pinner.Pin(c.LogicalCore); err != nil {
				toUtility <- ErrorHappened{CoreID: core, Err: err, Fatal: false}
			}

		case Stop:
			closeJob(current)
			return
		}
	}
}
