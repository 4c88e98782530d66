package topology

import "github.com/capacitymesh/ccp/internal/ccptypes"

// ThreadAllocation is §4.3's thread allocation policy: how many Hasher
// Workers a CU Prover spawns for one physical core.
type ThreadAllocation interface {
	// WorkerCount returns how many workers to spawn given the physical
	// core's available logical cores.
	WorkerCount(logicalCores []ccptypes.LogicalCoreId) int
}

// Exact spawns exactly N workers regardless of how many logical cores the
// physical core has (they round-robin-pin across whatever is available).
type Exact struct{ N int }

func (e Exact) WorkerCount([]ccptypes.LogicalCoreId) int { return e.N }

// Optimal spawns one worker per logical core of the physical core.
type Optimal struct{}

func (Optimal) WorkerCount(logicalCores []ccptypes.LogicalCoreId) int { return len(logicalCores) }

// AssignCores returns the logical core each of n workers pins to, via
// round-robin over logicalCores (worker i gets logicalCores[i % len]).
func AssignCores(logicalCores []ccptypes.LogicalCoreId, n int) []ccptypes.LogicalCoreId {
	out := make([]ccptypes.LogicalCoreId, n)
	for i := 0; i < n; i++ {
		out[i] = logicalCores[i%len(logicalCores)]
	}
	return out
}
