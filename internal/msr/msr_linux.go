//go:build linux

package msr

import (
	"fmt"
	"os"
	"path/filepath"
)

// linuxPoker reads and writes /dev/cpu/N/msr, the real MSR device file on
// Linux/amd64 hosts with the msr kernel module loaded.
type linuxPoker struct {
	restore []savedValue
}

type savedValue struct {
	file     *os.File
	register uint32
	prior    uint64
}

func NewPoker() Poker { return &linuxPoker{} }

func (p *linuxPoker) Apply(preset Preset, cores []uint32) error {
	for _, core := range cores {
		path := filepath.Join("/dev/cpu", fmt.Sprint(core), "msr")
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("msr: opening %s: %w", path, err)
		}

		for _, item := range preset.Items {
			prior, err := readMSR(f, item.Register)
			if err != nil {
				f.Close()
				return fmt.Errorf("msr: reading register 0x%x on core %d: %w", item.Register, core, err)
			}

			newValue := item.Value
			if item.Mask != 0 {
				newValue = (prior & item.Mask) | (item.Value &^ item.Mask)
			}
			if err := writeMSR(f, item.Register, newValue); err != nil {
				f.Close()
				return fmt.Errorf("msr: writing register 0x%x on core %d: %w", item.Register, core, err)
			}
			p.restore = append(p.restore, savedValue{file: f, register: item.Register, prior: prior})
		}
	}
	return nil
}

func (p *linuxPoker) Reverse() error {
	var firstErr error
	seen := map[*os.File]bool{}
	for i := len(p.restore) - 1; i >= 0; i-- {
		sv := p.restore[i]
		if err := writeMSR(sv.file, sv.register, sv.prior); err != nil && firstErr == nil {
			firstErr = err
		}
		seen[sv.file] = true
	}
	for f := range seen {
		f.Close()
	}
	p.restore = nil
	return firstErr
}

func readMSR(f *os.File, register uint32) (uint64, error) {
	var buf [8]byte
	if _, err := f.ReadAt(buf[:], int64(register)); err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

func writeMSR(f *os.File, register uint32, value uint64) error {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(value)
		value >>= 8
	}
	_, err := f.WriteAt(buf[:], int64(register))
	return err
}
