// Package randomx defines the external library contract of §6: Cache,
// Dataset and VM are consumed as an opaque primitive. The RandomX algorithm
// itself is out of scope for this repository; this package only pins down
// the interface the rest of the core (cuprover, hasherworker) programs
// against, so a real cgo binding to librandomx can be dropped in later
// without touching any scheduling code.
package randomx

import (
	"golang.org/x/crypto/sha3"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// Flags mirrors the RandomX flag set referenced by §6's contract and the
// optimizations section of the config (large pages, hardware AES, JIT,
// "secure" mode, and the argon2 implementation variant used for Cache key
// derivation).
type Flags struct {
	LargePages bool
	HardAES    bool
	JIT        bool
	Secure     bool
	Argon2     Argon2Variant
}

type Argon2Variant uint8

const (
	Argon2Default Argon2Variant = iota
	Argon2AVX2
	Argon2SSSE3
)

// CacheKey derives the RandomX Cache key as specified in §6:
// keccak256(global_nonce ∥ cu_id).
func CacheKey(globalNonce, cuID ccptypes.Hash32) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(globalNonce[:])
	h.Write(cuID[:])
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// Cache is the RandomX cache built from a 32-byte key under a flag set.
type Cache interface {
	Key() [32]byte
}

// Dataset is the RandomX dataset: a large, read-only-once-initialized
// buffer shared by every Hasher Worker of a CU Prover. ItemsCount and
// Handle let callers partition initialization work across threads per
// §4.2's key invariant.
type Dataset interface {
	ItemsCount() uint64
	Handle() DatasetHandle
	// Initialize fills [startItem, startItem+itemsCount) of the dataset from
	// cache. Disjoint ranges may be initialized concurrently without locks.
	Initialize(cache Cache, startItem, itemsCount uint64) error
}

// DatasetHandle is a cheap, read-only, reference-counted-by-convention
// handle to a Dataset; it is what gets cloned to every worker of a CU
// Prover and outlives a repin.
type DatasetHandle interface {
	ItemsCount() uint64
}

// VM is a RandomX virtual machine bound either to a Cache ("light" mode,
// used transiently for cache construction) or to a DatasetHandle ("fast"
// mode, used for the actual hashing loop). The three-call streaming API
// mirrors §4.3's hash round contract exactly: HashFirst primes the
// pipeline, HashNext advances it one nonce at a time, and HashLast drains
// the final in-flight result.
type VM interface {
	HashFirst(input []byte)
	HashNext(input []byte) [32]byte
	HashLast() [32]byte
	Close() error
}

// Allocator is the factory the contract in §6 specifies:
// Cache::new, Dataset::allocate, VM::light, VM::fast.
type Allocator interface {
	NewCache(key [32]byte, flags Flags) (Cache, error)
	AllocateDataset(flags Flags) (Dataset, error)
	NewLightVM(cache Cache, flags Flags) (VM, error)
	NewFastVM(handle DatasetHandle, flags Flags) (VM, error)
}
