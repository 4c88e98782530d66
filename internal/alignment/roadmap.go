// Package alignment implements the alignment planner: a pure function that
// diffs a desired core-to-CU allocation against the currently running set
// and emits a minimal, well-ordered action plan.
//
// The original (Rust) implementation builds the roadmap through a chain of
// typed builder stages so the compiler enforces phase ordering. Go has no
// equivalent compile-time guarantee worth the ceremony here, so this edition
// collapses the chain into a single function with five clearly separated
// phases (see Plan) — the contract the test suite cares about, the
// roadmap's contents, is unaffected. See DESIGN.md for this Open Question
// decision.
package alignment

import (
	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// ActionKind discriminates the Action variants of §4.1.
type ActionKind uint8

const (
	ActionCreateCUProver ActionKind = iota
	ActionRemoveCUProver
	ActionNewCCJob
	ActionNewCCJobWithRepining
)

// Action is one step of a Roadmap. Only the fields relevant to Kind are
// populated; this mirrors a tagged union closely enough without needing a
// Go sum-type library.
type Action struct {
	Kind ActionKind

	// CreateCUProver, NewCCJob
	CoreID ccptypes.PhysicalCoreId
	CUID   ccptypes.CUID

	// RemoveCUProver, NewCCJobWithRepining (the core being removed/moved from)
	FromCoreID ccptypes.PhysicalCoreId

	// NewCCJobWithRepining (the core being moved to); equals CoreID for clarity
	ToCoreID ccptypes.PhysicalCoreId
}

func CreateCUProver(core ccptypes.PhysicalCoreId, cu ccptypes.CUID) Action {
	return Action{Kind: ActionCreateCUProver, CoreID: core, CUID: cu}
}

func RemoveCUProver(core ccptypes.PhysicalCoreId) Action {
	return Action{Kind: ActionRemoveCUProver, FromCoreID: core}
}

func NewCCJob(core ccptypes.PhysicalCoreId, cu ccptypes.CUID) Action {
	return Action{Kind: ActionNewCCJob, CoreID: core, CUID: cu}
}

func NewCCJobWithRepining(fromCore, toCore ccptypes.PhysicalCoreId, cu ccptypes.CUID) Action {
	return Action{Kind: ActionNewCCJobWithRepining, FromCoreID: fromCore, ToCoreID: toCore, CoreID: toCore, CUID: cu}
}

// PreActionKind discriminates the (optional) pre-action run before the
// roadmap's ordinary actions.
type PreActionKind uint8

const (
	PreActionNone PreActionKind = iota
	PreActionCleanProofCache
)

// Roadmap is the ordered set of actions emitted by the Alignment Planner.
type Roadmap struct {
	PreAction PreActionKind
	Actions   []Action
	Epoch     ccptypes.EpochParameters
}
