//go:build linux

package msr

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteMSRRoundtrips(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "fake-msr")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, writeMSR(f, 0x1a4, 0xdeadbeef))
	got, err := readMSR(f, 0x1a4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), got)
}

func TestApplyHonorsMaskPreservingUnmaskedBits(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "fake-msr")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, writeMSR(f, 0xc0011021, 0xffffffffffffffff))

	prior, err := readMSR(f, 0xc0011021)
	require.NoError(t, err)

	item := AMDZen3Preset.Items[1] // register 0xc0011021, Mask = ^0x20
	newValue := (prior & item.Mask) | (item.Value &^ item.Mask)
	require.NoError(t, writeMSR(f, item.Register, newValue))

	got, err := readMSR(f, item.Register)
	require.NoError(t, err)
	// Bit 0x20 comes from item.Value, every other bit is preserved from
	// the all-ones prior value.
	assert.Equal(t, item.Value&0x20, got&0x20)
	assert.Equal(t, prior&^uint64(0x20), got&^uint64(0x20))
}
