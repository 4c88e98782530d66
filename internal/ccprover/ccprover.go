// Package ccprover implements §4.5's CC Prover: the top-level,
// orchestrator-facing object holding every committed physical core's
// CUProver and the Utility Collector, planning with the Alignment Planner
// and applying its roadmap.
package ccprover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capacitymesh/ccp/internal/alignment"
	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/cuprover"
	"github.com/capacitymesh/ccp/internal/log"
	"github.com/capacitymesh/ccp/internal/metrics"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
	"github.com/capacitymesh/ccp/internal/store"
	"github.com/capacitymesh/ccp/internal/topology"
	"github.com/capacitymesh/ccp/internal/utility"
)

// CCProver is the orchestrator-facing top-level object. Exactly one per
// daemon process.
type CCProver struct {
	top        *topology.Topology
	allocation topology.ThreadAllocation
	flags      randomx.Flags
	allocator  randomx.Allocator
	pinner     pin.Pinner
	states     *store.StateStore
	log        log.Logger

	proofs    *store.ProofStore
	collector *utility.Collector
	metrics   *metrics.Registry

	mu             sync.Mutex
	provers        map[ccptypes.PhysicalCoreId]*cuprover.CUProver
	status         ccptypes.CCStatus
	current        ccptypes.CUAllocation
	epochStartedAt time.Time

	metricsTickerStop chan struct{}
}

// epochAgeTickInterval is how often the epoch_age_seconds gauge is refreshed
// while a commitment is active.
const epochAgeTickInterval = 5 * time.Second

// New constructs a CC Prover with no committed cores (Idle).
func New(
	top *topology.Topology,
	allocation topology.ThreadAllocation,
	flags randomx.Flags,
	allocator randomx.Allocator,
	pinner pin.Pinner,
	proofs *store.ProofStore,
	states *store.StateStore,
	reg *metrics.Registry,
) *CCProver {
	p := &CCProver{
		top:        top,
		allocation: allocation,
		flags:      flags,
		allocator:  allocator,
		pinner:     pinner,
		states:     states,
		log:        log.New("component", "ccprover"),
		proofs:     proofs,
		metrics:    reg,
		provers:    map[ccptypes.PhysicalCoreId]*cuprover.CUProver{},
		status:     ccptypes.IdleCCStatus(),
		current:    ccptypes.CUAllocation{},
	}
	p.collector = utility.New(proofs, p.onWorkerError)
	if reg != nil {
		p.collector.SetMetrics(reg)
		p.metricsTickerStop = make(chan struct{})
		go p.runMetricsTicker()
	}
	go p.collector.Run()
	return p
}

func (p *CCProver) runMetricsTicker() {
	ticker := time.NewTicker(epochAgeTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			running := p.status.Kind == ccptypes.CCRunning
			age := time.Since(p.epochStartedAt).Seconds()
			p.mu.Unlock()
			if running {
				p.metrics.SetEpochAgeSeconds(age)
			}
		case <-p.metricsTickerStop:
			return
		}
	}
}

func (p *CCProver) onWorkerError(core ccptypes.LogicalCoreId, err error, fatal bool) {
	if fatal {
		p.log.Crit("fatal error propagated from utility collector", "core", core, "err", err)
	}
}

// OnActiveCommitment implements §4.5: plan with the Alignment Planner,
// apply the pre-action, then apply every action in parallel, retaining
// successfully updated provers even on partial failure.
func (p *CCProver) OnActiveCommitment(epoch ccptypes.EpochParameters, allocation ccptypes.CUAllocation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentStatuses := alignment.CurrentAllocation{}
	for core, prover := range p.provers {
		currentStatuses[core] = prover.Status()
	}

	roadmap := alignment.Plan(allocation, epoch, currentStatuses, p.status)
	if p.status.Kind == ccptypes.CCIdle || p.status.Epoch != epoch {
		p.epochStartedAt = time.Now()
	}

	if roadmap.PreAction == alignment.PreActionCleanProofCache {
		if err := p.collector.CleanProofCache(); err != nil {
			p.log.Error("failed to clean proof cache", "err", err)
		}
	}

	errs := p.applyActionsLocked(roadmap.Actions, epoch)

	p.status = ccptypes.RunningCCStatus(epoch)
	p.current = allocation.Clone()

	if err := p.states.Save(&ccptypes.CCPState{EpochParams: &epoch, CUAllocation: p.current}); err != nil {
		p.log.Error("failed to persist state", "err", err)
	}

	if len(errs) > 0 {
		p.log.Error("on_active_commitment applied with errors", "failed_cores", len(errs))
	}

	if p.metrics != nil {
		p.metrics.SetAllocatedLogicalCores(p.allocatedLogicalCoresLocked())
		p.metrics.SetEpochAgeSeconds(0)
	}
}

func (p *CCProver) allocatedLogicalCoresLocked() int {
	total := 0
	for core := range p.provers {
		total += len(p.top.LogicalCoresFor(core))
	}
	return total
}

func (p *CCProver) applyActionsLocked(actions []alignment.Action, epoch ccptypes.EpochParameters) map[ccptypes.PhysicalCoreId]error {
	var mu sync.Mutex
	errs := map[ccptypes.PhysicalCoreId]error{}
	var wg sync.WaitGroup

	recordErr := func(core ccptypes.PhysicalCoreId, err error) {
		mu.Lock()
		errs[core] = err
		mu.Unlock()
	}

	for _, action := range actions {
		action := action
		switch action.Kind {
		case alignment.ActionCreateCUProver:
			wg.Add(1)
			go func() {
				defer wg.Done()
				prover, err := cuprover.Create(p.top, p.allocation, action.CoreID, p.flags, p.allocator, p.pinner, p.collector.Inbox())
				if err != nil {
					recordErr(action.CoreID, err)
					return
				}
				if err := prover.NewEpoch(epoch, action.CUID); err != nil {
					recordErr(action.CoreID, err)
				}
				mu.Lock()
				p.provers[action.CoreID] = prover
				mu.Unlock()
			}()

		case alignment.ActionRemoveCUProver:
			wg.Add(1)
			go func() {
				defer wg.Done()
				mu.Lock()
				prover := p.provers[action.FromCoreID]
				delete(p.provers, action.FromCoreID)
				mu.Unlock()
				if prover != nil {
					prover.Stop()
				}
			}()

		case alignment.ActionNewCCJob:
			wg.Add(1)
			go func() {
				defer wg.Done()
				mu.Lock()
				prover := p.provers[action.CoreID]
				mu.Unlock()
				if prover == nil {
					recordErr(action.CoreID, fmt.Errorf("ccprover: NewCCJob on unknown core %d", action.CoreID))
					return
				}
				if err := prover.NewEpoch(epoch, action.CUID); err != nil {
					recordErr(action.CoreID, err)
				}
			}()

		case alignment.ActionNewCCJobWithRepining:
			wg.Add(1)
			go func() {
				defer wg.Done()
				mu.Lock()
				prover := p.provers[action.FromCoreID]
				delete(p.provers, action.FromCoreID)
				mu.Unlock()
				if prover == nil {
					recordErr(action.ToCoreID, fmt.Errorf("ccprover: NewCCJobWithRepining from unknown core %d", action.FromCoreID))
					return
				}
				if err := prover.Repin(p.top, action.ToCoreID); err != nil {
					recordErr(action.ToCoreID, err)
					return
				}
				if err := prover.NewEpoch(epoch, action.CUID); err != nil {
					recordErr(action.ToCoreID, err)
					return
				}
				mu.Lock()
				p.provers[action.ToCoreID] = prover
				mu.Unlock()
			}()
		}
	}

	wg.Wait()
	return errs
}

// OnNoActiveCommitment stops every CU Prover in parallel and clears
// persisted state.
func (p *CCProver) OnNoActiveCommitment() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var wg sync.WaitGroup
	for _, prover := range p.provers {
		prover := prover
		wg.Add(1)
		go func() {
			defer wg.Done()
			prover.Stop()
		}()
	}
	wg.Wait()

	p.provers = map[ccptypes.PhysicalCoreId]*cuprover.CUProver{}
	p.status = ccptypes.IdleCCStatus()
	p.current = ccptypes.CUAllocation{}

	if p.metrics != nil {
		p.metrics.SetAllocatedLogicalCores(0)
	}

	return p.states.Clear()
}

// GetProofsAfter reads proofs with idx > after. Acquiring the prover mutex
// is bounded by ctx (rpcserver sets the 2-second deadline of §5): if ctx is
// done before the mutex is free, ctx's error is returned and no lock is
// taken.
func (p *CCProver) GetProofsAfter(ctx context.Context, after ccptypes.ProofIdx) ([]ccptypes.CCProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for !p.mu.TryLock() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	defer p.mu.Unlock()

	return p.proofs.After(after)
}

// Stop stops every prover and the Utility Collector.
func (p *CCProver) Stop() {
	p.mu.Lock()
	var wg sync.WaitGroup
	for _, prover := range p.provers {
		prover := prover
		wg.Add(1)
		go func() {
			defer wg.Done()
			prover.Stop()
		}()
	}
	wg.Wait()
	p.provers = map[ccptypes.PhysicalCoreId]*cuprover.CUProver{}
	p.mu.Unlock()

	if p.metricsTickerStop != nil {
		close(p.metricsTickerStop)
	}
	p.collector.Stop()
}

// ReallocUtilityCores rebinds the Utility task's CPU affinity.
func (p *CCProver) ReallocUtilityCores(coreIDs []uint32) error {
	for _, id := range coreIDs {
		if err := p.pinner.Pin(ccptypes.LogicalCoreId(id)); err != nil {
			return fmt.Errorf("ccprover: realloc_utility_cores: %w", err)
		}
	}
	return nil
}
