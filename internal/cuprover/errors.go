package cuprover

import (
	"fmt"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// TopologyError reports a physical core with no discoverable logical
// cores, or a topology enumeration failure — §7's TopologyError, fatal to
// the affected create().
type TopologyError struct {
	Core ccptypes.PhysicalCoreId
	Err  error
}

func (e *TopologyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cuprover: topology error for core %d: %v", e.Core, e.Err)
	}
	return fmt.Sprintf("cuprover: physical core %d has no logical cores", e.Core)
}

func (e *TopologyError) Unwrap() error { return e.Err }

// RandomXError wraps an allocator failure (cache/dataset/VM) — §7's
// RandomXError, recoverable per worker.
type RandomXError struct {
	Core ccptypes.LogicalCoreId
	Err  error
}

func (e *RandomXError) Error() string {
	return fmt.Sprintf("cuprover: randomx error on logical core %d: %v", e.Core, e.Err)
}

func (e *RandomXError) Unwrap() error { return e.Err }

// ThreadErrors aggregates per-worker failures from new_epoch, as §4.2
// specifies ("return the aggregated ThreadErrors; successful threads
// continue or are reaped by stop").
type ThreadErrors struct {
	Errors []error
}

func (e *ThreadErrors) Error() string {
	return fmt.Sprintf("cuprover: %d worker(s) failed: %v", len(e.Errors), e.Errors)
}

func (e *ThreadErrors) Unwrap() []error { return e.Errors }
