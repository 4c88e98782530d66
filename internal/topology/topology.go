// Package topology discovers the mapping between physical and logical CPU
// cores, the Go-native replacement for the hwloc2 binding the original
// implementation used (original_source/crates/cpu-topology). gopsutil's
// cpu.Info gives us the same physical/logical grouping hwloc2 exposes,
// without a cgo dependency.
package topology

import (
	"fmt"
	"sort"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// Topology maps physical cores to the logical cores (hyperthreads) that
// belong to them.
type Topology struct {
	logicalByPhysical map[ccptypes.PhysicalCoreId][]ccptypes.LogicalCoreId
	physicalCores     []ccptypes.PhysicalCoreId
}

// Discover builds a Topology from the host's reported CPU info. Physical
// core identity is derived from (physicalID, coreID) pairs the way the
// kernel reports them; logical core ids are the info slice's own index,
// which matches /proc/cpuinfo's "processor" field on Linux.
func Discover() (*Topology, error) {
	infos, err := cpu.Info()
	if err != nil {
		return nil, fmt.Errorf("topology: reading cpu info: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("topology: host reported zero logical cores")
	}

	type physKey struct {
		physicalID string
		coreID     string
	}
	physIndex := map[physKey]ccptypes.PhysicalCoreId{}
	t := &Topology{logicalByPhysical: map[ccptypes.PhysicalCoreId][]ccptypes.LogicalCoreId{}}

	for i, info := range infos {
		key := physKey{physicalID: info.PhysicalID, coreID: info.CoreID}
		physID, known := physIndex[key]
		if !known {
			physID = ccptypes.PhysicalCoreId(len(physIndex))
			physIndex[key] = physID
			t.physicalCores = append(t.physicalCores, physID)
		}
		logical := ccptypes.LogicalCoreId(i)
		t.logicalByPhysical[physID] = append(t.logicalByPhysical[physID], logical)
	}

	for _, cores := range t.logicalByPhysical {
		sort.Slice(cores, func(i, j int) bool { return cores[i] < cores[j] })
	}

	return t, nil
}

// New builds a Topology directly from a physical→logical core mapping,
// bypassing host discovery. Used by tests and by callers that already know
// their topology (e.g. from a config override).
func New(logicalByPhysical map[ccptypes.PhysicalCoreId][]ccptypes.LogicalCoreId) *Topology {
	t := &Topology{logicalByPhysical: map[ccptypes.PhysicalCoreId][]ccptypes.LogicalCoreId{}}
	for core, logical := range logicalByPhysical {
		cores := append([]ccptypes.LogicalCoreId(nil), logical...)
		sort.Slice(cores, func(i, j int) bool { return cores[i] < cores[j] })
		t.logicalByPhysical[core] = cores
		t.physicalCores = append(t.physicalCores, core)
	}
	sort.Slice(t.physicalCores, func(i, j int) bool { return t.physicalCores[i] < t.physicalCores[j] })
	return t
}

// PhysicalCoresCount returns the number of distinct physical cores discovered.
func (t *Topology) PhysicalCoresCount() int { return len(t.physicalCores) }

// LogicalCoresFor returns the logical cores belonging to core, in ascending
// order. An empty, non-nil slice means core is unknown or has no logical
// cores; callers treat that as a TopologyError per §4.2.
func (t *Topology) LogicalCoresFor(core ccptypes.PhysicalCoreId) []ccptypes.LogicalCoreId {
	cores := t.logicalByPhysical[core]
	out := make([]ccptypes.LogicalCoreId, len(cores))
	copy(out, cores)
	return out
}

// AllLogicalCores returns every logical core across every physical core,
// in ascending order. Used for host-wide, allocation-independent setup
// steps such as applying an MSR preset at startup.
func (t *Topology) AllLogicalCores() []ccptypes.LogicalCoreId {
	var out []ccptypes.LogicalCoreId
	for _, core := range t.physicalCores {
		out = append(out, t.logicalByPhysical[core]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
