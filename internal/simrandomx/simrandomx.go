// Package simrandomx is a pure-Go, deterministic stand-in for the RandomX
// primitive described in spec.md §6. It is NOT cryptographically equivalent
// to real RandomX — there is no ASIC/GPU-resistance property here — but it
// satisfies the randomx.Allocator contract exactly, including the
// partition-independent dataset initialization invariant and the pipelined
// hash_first/hash_next/hash_last streaming semantics of §4.3. It exists so
// this module builds and its test suite runs without a system RandomX
// install; a real cgo binding can implement the same randomx.Allocator
// interface and be swapped in at the call site in cmd/ccp.
package simrandomx

import (
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/capacitymesh/ccp/internal/randomx"
)

func keccak(parts ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

type allocator struct{}

// NewAllocator returns the simulated randomx.Allocator.
func NewAllocator() randomx.Allocator { return allocator{} }

func (allocator) NewCache(key [32]byte, _ randomx.Flags) (randomx.Cache, error) {
	return &cache{key: key}, nil
}

func (allocator) AllocateDataset(_ randomx.Flags) (randomx.Dataset, error) {
	return &dataset{itemsCount: defaultItemsCount}, nil
}

func (allocator) NewLightVM(c randomx.Cache, _ randomx.Flags) (randomx.VM, error) {
	cc, ok := c.(*cache)
	if !ok {
		return nil, fmt.Errorf("simrandomx: foreign Cache implementation")
	}
	return &vm{seed: cc.key}, nil
}

func (allocator) NewFastVM(h randomx.DatasetHandle, _ randomx.Flags) (randomx.VM, error) {
	dh, ok := h.(*datasetHandle)
	if !ok {
		return nil, fmt.Errorf("simrandomx: foreign DatasetHandle implementation")
	}
	return &vm{seed: dh.seed}, nil
}

// defaultItemsCount stands in for RandomX's real (far larger) dataset item
// count; it only needs to be large enough to exercise the partitioning
// invariant in cuprover's initialization code.
const defaultItemsCount = 1 << 16

type cache struct {
	key [32]byte
}

func (c *cache) Key() [32]byte { return c.key }

// dataset holds the key of the cache it was last initialized from and the
// seed derived from that key, instead of gigabytes of real dataset items.
// It does not record which items were initialized, so it cannot detect gaps
// or overlaps between initialization ranges.
type dataset struct {
	itemsCount uint64
	cacheKey   [32]byte
	seed       [32]byte
	handle     *datasetHandle
}

func (d *dataset) ItemsCount() uint64 { return d.itemsCount }

func (d *dataset) Initialize(c randomx.Cache, startItem, itemsCount uint64) error {
	if startItem+itemsCount > d.itemsCount {
		return fmt.Errorf("simrandomx: range [%d,%d) exceeds dataset size %d", startItem, startItem+itemsCount, d.itemsCount)
	}
	cc, ok := c.(*cache)
	if !ok {
		return fmt.Errorf("simrandomx: foreign Cache implementation")
	}
	d.cacheKey = cc.key

	// The dataset's effective content only depends on the cache key, not on
	// which thread initialized which range or in what order — this is what
	// makes lock-free, disjoint-range parallel initialization safe.
	d.seed = keccak(cc.key[:])
	// Drop any handle taken before this initialization so the next Handle
	// call reflects the new content.
	d.handle = nil
	return nil
}

func (d *dataset) Handle() randomx.DatasetHandle {
	if d.handle == nil {
		d.handle = &datasetHandle{itemsCount: d.itemsCount, seed: d.seed}
	}
	return d.handle
}

type datasetHandle struct {
	itemsCount uint64
	seed       [32]byte
}

func (h *datasetHandle) ItemsCount() uint64 { return h.itemsCount }

// vm implements the pipelined streaming hash contract of §4.3: HashNext(i)
// returns the result for the PREVIOUS input, not the one just supplied.
type vm struct {
	seed    [32]byte
	pending []byte
	primed  bool
}

func (v *vm) HashFirst(input []byte) {
	v.pending = append([]byte(nil), input...)
	v.primed = true
}

func (v *vm) HashNext(input []byte) [32]byte {
	result := v.finalizePending()
	v.pending = append([]byte(nil), input...)
	return result
}

func (v *vm) HashLast() [32]byte {
	return v.finalizePending()
}

func (v *vm) finalizePending() [32]byte {
	if !v.primed {
		return [32]byte{}
	}
	return keccak(v.seed[:], v.pending)
}

func (v *vm) Close() error { return nil }
