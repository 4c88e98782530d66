// Package msr implements §5's optional MSR poke: writing CPU model-specific
// registers to disable prefetchers for RandomX, reversed on shutdown. It is
// a real, guarded component rather than a stub — a no-op on anything but
// Linux, and disabled unless Optimizations.MSREnabled is set.
//
// Register/value pairs are grounded on
// original_source/crates/msr/src/linux_x86_64/cpu_preset_values.rs.
package msr

// PresetItem is one MSR write: Register's bits covered by Mask are
// preserved from the register's current value (Mask == 0 means "overwrite
// all bits").
type PresetItem struct {
	Register uint32
	Value    uint64
	Mask     uint64 // bits to preserve from the existing value; 0 = overwrite fully
}

// Preset is a named, ordered set of MSR writes for one CPU family.
type Preset struct {
	Name  string
	Items []PresetItem
}

// NoOpPreset applies nothing; used when the host CPU model isn't
// recognized, matching the original's "No-op" first table entry.
var NoOpPreset = Preset{Name: "noop"}

// IntelPreset disables the Intel hardware prefetcher via MSR 0x1a4.
var IntelPreset = Preset{
	Name: "intel",
	Items: []PresetItem{
		{Register: 0x1a4, Value: 0xf},
	},
}

// AMDZen3Preset mirrors the original's ModRyzen19h preset.
var AMDZen3Preset = Preset{
	Name: "amd-zen3",
	Items: []PresetItem{
		{Register: 0xc0011020, Value: 0x0004480000000000},
		{Register: 0xc0011021, Value: 0x001c000200000040, Mask: ^uint64(0x20)},
		{Register: 0xc0011022, Value: 0xc000000401570000},
		{Register: 0xc001102b, Value: 0x2000cc10},
	},
}

// Poker applies and reverses a Preset across a set of logical cores.
type Poker interface {
	// Apply writes preset's registers on every core in cores, remembering
	// the prior values so Reverse can restore them.
	Apply(preset Preset, cores []uint32) error
	// Reverse restores whatever Apply overwrote.
	Reverse() error
}
