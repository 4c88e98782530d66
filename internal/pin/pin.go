// Package pin binds the calling OS thread to a specific logical CPU core.
// This is the real mechanism behind §4.3's PinThread command: the Hasher
// Worker's sync loop calls runtime.LockOSThread() to own an OS thread for
// its lifetime, then asks a Pinner to set that thread's affinity.
package pin

import "github.com/capacitymesh/ccp/internal/ccptypes"

// Pinner binds the calling goroutine's locked OS thread to core. Callers
// must have already called runtime.LockOSThread(); Pin affects only the
// calling thread, matching §5's "CPU affinity is a per-thread attribute;
// changes are local to that thread."
type Pinner interface {
	Pin(core ccptypes.LogicalCoreId) error
}

// NoopPinner satisfies Pinner without touching OS affinity, used on
// platforms without a SchedSetaffinity equivalent and in tests.
type NoopPinner struct{}

func (NoopPinner) Pin(ccptypes.LogicalCoreId) error { return nil }
