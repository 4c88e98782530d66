// Package cuprover implements §4.2's CU Prover: ownership of one physical
// core's RandomX Dataset and the set of Hasher Workers pinned to that
// core's logical cores.
package cuprover

import (
	"fmt"
	"sync"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hasherworker"
	"github.com/capacitymesh/ccp/internal/log"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
	"github.com/capacitymesh/ccp/internal/topology"
)

// CUProver owns one physical core's Dataset and the Hasher Workers pinned
// to its logical cores. Exclusively owned by a single CC Prover, per §3's
// ownership invariant.
type CUProver struct {
	physicalCore ccptypes.PhysicalCoreId
	logicalCores []ccptypes.LogicalCoreId
	flags        randomx.Flags
	allocator    randomx.Allocator
	pinner       pin.Pinner
	log          log.Logger

	mu      sync.Mutex
	workers []*hasherworker.Worker
	dataset randomx.Dataset
	status  ccptypes.CUStatus
}

// Create discovers physicalCore's logical cores, spawns one pinned Hasher
// Worker per the allocation policy, and allocates (but does not yet
// initialize) a Dataset. The prover starts Idle.
func Create(
	top *topology.Topology,
	allocation topology.ThreadAllocation,
	physicalCore ccptypes.PhysicalCoreId,
	flags randomx.Flags,
	allocator randomx.Allocator,
	pinner pin.Pinner,
	toUtility chan<- hasherworker.ToUtility,
) (*CUProver, error) {
	logicalCores := top.LogicalCoresFor(physicalCore)
	if len(logicalCores) == 0 {
		return nil, &TopologyError{Core: physicalCore}
	}

	n := allocation.WorkerCount(logicalCores)
	if n <= 0 {
		n = 1
	}
	pins := topology.AssignCores(logicalCores, n)

	p := &CUProver{
		physicalCore: physicalCore,
		logicalCores: logicalCores,
		flags:        flags,
		allocator:    allocator,
		pinner:       pinner,
		log:          log.New("component", "cuprover", "physical_core", physicalCore),
		status:       ccptypes.IdleCUStatus(),
	}

	for _, core := range pins {
		w := hasherworker.New(core, toUtility, allocator, pinner)
		w.PinThread(core)
		p.workers = append(p.workers, w)
	}

	dataset, err := allocator.AllocateDataset(flags)
	if err != nil {
		for _, w := range p.workers {
			w.Stop()
		}
		return nil, &RandomXError{Err: err}
	}
	p.dataset = dataset

	return p, nil
}

// Status reports this prover's observed state (§3's CUStatus).
func (p *CUProver) Status() ccptypes.CUStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// PhysicalCore is the core this prover proves ownership of.
func (p *CUProver) PhysicalCore() ccptypes.PhysicalCoreId { return p.physicalCore }

// NewEpoch transitions to Running{cuID}: builds a fresh Cache on one
// worker, partitions the Dataset across all workers for parallel
// initialization (§4.2's key invariant), then starts every worker's job.
func (p *CUProver) NewEpoch(epoch ccptypes.EpochParameters, cuID ccptypes.CUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return fmt.Errorf("cuprover: new_epoch on a prover with no workers")
	}

	cache, err := p.workers[0].CreateCache(epoch, cuID, p.flags)
	if err != nil {
		return &RandomXError{Core: p.logicalCores[0], Err: fmt.Errorf("create cache: %w", err)}
	}

	if errs := p.initializeDatasetLocked(epoch, cache); len(errs) > 0 {
		return &ThreadErrors{Errors: errs}
	}

	handle := p.dataset.Handle()
	for _, w := range p.workers {
		w.NewCCJob(handle, p.flags, epoch, cuID)
	}

	p.status = ccptypes.RunningCUStatus(cuID)
	return nil
}

// initializeDatasetLocked partitions [0, itemsCount) into T contiguous
// ranges, one per worker, and initializes them in parallel. Thread t
// initializes [t*floor(N/T), t*floor(N/T)+floor(N/T)); any remainder is
// appended to the last worker's range, per §4.2's resolved invariant.
func (p *CUProver) initializeDatasetLocked(epoch ccptypes.EpochParameters, cache randomx.Cache) []error {
	n := uint64(len(p.workers))
	total := p.dataset.ItemsCount()
	chunk := total / n

	var wg sync.WaitGroup
	errs := make([]error, len(p.workers))
	for i, w := range p.workers {
		start := uint64(i) * chunk
		count := chunk
		if uint64(i) == n-1 {
			count = total - start
		}
		wg.Add(1)
		go func(i int, w *hasherworker.Worker, start, count uint64) {
			defer wg.Done()
			if err := w.InitializeDataset(epoch, cache, p.dataset, start, count); err != nil {
				errs[i] = fmt.Errorf("worker %d: %w", i, err)
			}
		}(i, w, start, count)
	}
	wg.Wait()

	var out []error
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Repin releases the old pin and rebinds each worker to a logical core of
// newPhysicalCore (round-robin), continuing the current job without
// rebuilding the Dataset — dataset handles outlive repin per §4.2.
func (p *CUProver) Repin(top *topology.Topology, newPhysicalCore ccptypes.PhysicalCoreId) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logicalCores := top.LogicalCoresFor(newPhysicalCore)
	if len(logicalCores) == 0 {
		return &TopologyError{Core: newPhysicalCore}
	}

	pins := topology.AssignCores(logicalCores, len(p.workers))
	for i, w := range p.workers {
		w.PinThread(pins[i])
	}
	p.physicalCore = newPhysicalCore
	p.logicalCores = logicalCores
	return nil
}

// Pause parks every worker at WaitForMessage after it finishes its current
// round.
func (p *CUProver) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, w := range p.workers {
		if err := w.Pause(); err != nil {
			errs = append(errs, err)
		}
	}
	p.status = ccptypes.IdleCUStatus()
	if len(errs) > 0 {
		return &ThreadErrors{Errors: errs}
	}
	return nil
}

// Stop sends Stop to every worker, joins them, and releases the Dataset.
func (p *CUProver) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *hasherworker.Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
	p.dataset = nil
	p.workers = nil
}
