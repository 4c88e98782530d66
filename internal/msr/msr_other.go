//go:build !linux

package msr

// noopPoker satisfies Poker on platforms without an MSR device file.
type noopPoker struct{}

func NewPoker() Poker { return noopPoker{} }

func (noopPoker) Apply(Preset, []uint32) error { return nil }
func (noopPoker) Reverse() error               { return nil }
