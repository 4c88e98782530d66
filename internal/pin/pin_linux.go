//go:build linux

package pin

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// LinuxPinner pins the calling thread using sched_setaffinity, the real
// syscall behind §4.3's PinThread on the platform this daemon targets.
type LinuxPinner struct{}

func (LinuxPinner) Pin(core ccptypes.LogicalCoreId) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(int(core))

	// Affinity is a per-thread attribute (tid 0 means "the calling thread").
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin: sched_setaffinity core %d: %w", core, err)
	}
	return nil
}

// Default returns the platform's real Pinner.
func Default() Pinner { return LinuxPinner{} }
