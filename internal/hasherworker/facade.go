// Package hasherworker implements §4.3's Hasher Worker: a two-stage
// construct made of a cooperative façade (this file), owned by whatever
// goroutine drives the CU Prover, and a dedicated, pinned OS thread running
// the synchronous body (syncthread.go). The two halves talk over a small
// control protocol of bounded channels, matching the teacher's own split
// between a light RPC-facing handle and a worker goroutine in
// miner/worker.go.
package hasherworker

import (
	"fmt"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
)

// Worker is the façade handle a CU Prover holds. Every method except Stop
// and PinThread and NewCCJob blocks until the sync thread answers; those
// three get no reply (§4.3), though Stop then waits for the sync thread to
// exit.
type Worker struct {
	core      ccptypes.LogicalCoreId
	cmdCh     chan Command
	replyCh   chan Reply
	toUtility chan<- ToUtility
	done      chan struct{}
}

// New starts the Hasher Worker's sync thread and returns its façade. toUtility
// is the shared S→U channel; multiple Workers of the same CU Prover share one.
func New(core ccptypes.LogicalCoreId, toUtility chan<- ToUtility, allocator randomx.Allocator, pinner pin.Pinner) *Worker {
	w := &Worker{
		core:      core,
		cmdCh:     make(chan Command, 1),
		replyCh:   make(chan Reply, 1),
		toUtility: toUtility,
		done:      make(chan struct{}),
	}
	go runSyncThread(w.core, w.cmdCh, w.replyCh, w.toUtility, w.done, allocator, pinner)
	return w
}

func (w *Worker) request(cmd Command) (Reply, error) {
	w.cmdCh <- cmd
	reply := <-w.replyCh
	if f, ok := reply.(Failed); ok {
		return nil, f.Err
	}
	return reply, nil
}

// CreateCache is the two-phase CreateCache{epoch, cu_id, flags} command.
func (w *Worker) CreateCache(epoch ccptypes.EpochParameters, cuID ccptypes.CUID, flags randomx.Flags) (randomx.Cache, error) {
	reply, err := w.request(CreateCache{Epoch: epoch, CUID: cuID, Flags: flags})
	if err != nil {
		return nil, err
	}
	created, ok := reply.(CacheCreated)
	if !ok {
		return nil, fmt.Errorf("hasherworker: unexpected reply %T to CreateCache", reply)
	}
	return created.Cache, nil
}

// AllocateDataset is the two-phase AllocateDataset{flags} command.
func (w *Worker) AllocateDataset(flags randomx.Flags) (randomx.Dataset, error) {
	reply, err := w.request(AllocateDataset{Flags: flags})
	if err != nil {
		return nil, err
	}
	allocated, ok := reply.(DatasetAllocated)
	if !ok {
		return nil, fmt.Errorf("hasherworker: unexpected reply %T to AllocateDataset", reply)
	}
	return allocated.Dataset, nil
}

// InitializeDataset is the two-phase InitializeDataset command. It
// initializes [startItem, startItem+itemsCount) of dataset from cache on
// this worker's own pinned thread, per §4.2's partition invariant.
func (w *Worker) InitializeDataset(epoch ccptypes.EpochParameters, cache randomx.Cache, dataset randomx.Dataset, startItem, itemsCount uint64) error {
	_, err := w.request(InitializeDataset{Epoch: epoch, Cache: cache, Dataset: dataset, StartItem: startItem, ItemsCount: itemsCount})
	return err
}

// Pause is the two-phase Pause command: the worker parks at WaitForMessage
// with no active job until the next NewCCJob.
func (w *Worker) Pause() error {
	_, err := w.request(Pause{})
	return err
}

// NewCCJob is one-way: the sync thread builds job state and starts hashing
// without acknowledging back to the façade.
func (w *Worker) NewCCJob(handle randomx.DatasetHandle, flags randomx.Flags, epoch ccptypes.EpochParameters, cuID ccptypes.CUID) {
	w.cmdCh <- NewCCJob{Handle: handle, Flags: flags, Epoch: epoch, CUID: cuID}
}

// PinThread is one-way: the sync thread calls Pinner.Pin on its own locked
// OS thread the next time it polls its mailbox.
func (w *Worker) PinThread(core ccptypes.LogicalCoreId) {
	w.cmdCh <- PinThread{LogicalCore: core}
}

// Stop asks the sync thread to exit and blocks until it has, joining the OS
// thread the way the teacher's worker goroutines are joined on shutdown.
func (w *Worker) Stop() {
	w.cmdCh <- Stop{}
	<-w.done
}
