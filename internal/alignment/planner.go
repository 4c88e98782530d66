package alignment

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// CurrentAllocation is the observed state the planner diffs against: one
// status per physical core currently committed.
type CurrentAllocation map[ccptypes.PhysicalCoreId]ccptypes.CUStatus

// Plan is the Alignment Planner. It is total: it never fails, and it must
// not panic on empty or entirely-disjoint inputs.
//
// The five phases below follow §4.1 exactly:
//  1. derive the epoch delta and push CleanProofCache if entering a new epoch
//  2. walk the desired allocation, retaining/renewing cores that already
//     exist, queuing the rest as unprepared allocations
//  3. queue every non-retained current core as an unprepared removal
//  4. pair up unprepared allocations with unprepared removals as repins
//  5. emit the remaining creates, then the remaining removes
func Plan(newAllocation ccptypes.CUAllocation, newEpoch ccptypes.EpochParameters, current CurrentAllocation, currentStatus ccptypes.CCStatus) Roadmap {
	isNewEpoch := currentStatus.Kind == ccptypes.CCIdle || currentStatus.Epoch != newEpoch

	roadmap := Roadmap{Epoch: newEpoch}
	if isNewEpoch {
		roadmap.PreAction = PreActionCleanProofCache
	}

	// Phase 2: walk desired allocation.
	retained := mapset.NewThreadUnsafeSet()
	var unpreparedAllocations []pendingAllocation
	for core, cu := range newAllocation {
		status, exists := current[core]
		if !exists {
			unpreparedAllocations = append(unpreparedAllocations, pendingAllocation{core: core, cu: cu})
			continue
		}
		retained.Add(core)
		if shouldUpdateJob(status, cu, isNewEpoch) {
			roadmap.Actions = append(roadmap.Actions, NewCCJob(core, cu))
		}
	}

	// Phase 3: every current core not retained is an unprepared removal.
	var unpreparedRemovals []ccptypes.PhysicalCoreId
	for core := range current {
		if !retained.Contains(core) {
			unpreparedRemovals = append(unpreparedRemovals, core)
		}
	}

	// Phase 4: substitution pass, last-in/first-out as the spec permits.
	for len(unpreparedAllocations) > 0 && len(unpreparedRemovals) > 0 {
		lastAlloc := unpreparedAllocations[len(unpreparedAllocations)-1]
		unpreparedAllocations = unpreparedAllocations[:len(unpreparedAllocations)-1]

		lastRemoval := unpreparedRemovals[len(unpreparedRemovals)-1]
		unpreparedRemovals = unpreparedRemovals[:len(unpreparedRemovals)-1]

		roadmap.Actions = append(roadmap.Actions, NewCCJobWithRepining(lastRemoval, lastAlloc.core, lastAlloc.cu))
	}

	// Phase 5: bulk creates, then bulk removes.
	for _, a := range unpreparedAllocations {
		roadmap.Actions = append(roadmap.Actions, CreateCUProver(a.core, a.cu))
	}
	for _, core := range unpreparedRemovals {
		roadmap.Actions = append(roadmap.Actions, RemoveCUProver(core))
	}

	return roadmap
}

type pendingAllocation struct {
	core ccptypes.PhysicalCoreId
	cu   ccptypes.CUID
}

// shouldUpdateJob implements §4.1 phase 2's per-core rule: a retained core
// gets a fresh NewCCJob unless it is already running the requested CU in the
// same epoch (the idempotent no-op case).
func shouldUpdateJob(status ccptypes.CUStatus, newCU ccptypes.CUID, isNewEpoch bool) bool {
	if !status.IsRunning() {
		return true
	}
	return status.CUID != newCU || isNewEpoch
}
