// Package ccptypes holds the value types shared across the commitment-prover
// scheduling core: epoch parameters, core identifiers, nonces, and proofs.
// None of these types carry behavior beyond what the data model in the spec
// requires; the packages that consume them (alignment, cuprover, utility,
// ccprover) own the operations.
package ccptypes

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Hash32 is a 32-byte value used for global nonces, difficulties, CUIDs and
// result hashes alike. A named array (not a slice) keeps these values
// comparable and usable as map keys, mirroring how the teacher repo treats
// common.Hash.
type Hash32 [32]byte

func (h Hash32) String() string {
	return fmt.Sprintf("0x%x", [32]byte(h))
}

// Less reports whether h is strictly less than other, treating both as
// 256-bit big-endian unsigned integers. This is the comparison the spec
// calls "golden": result_hash < difficulty.
func (h Hash32) Less(other Hash32) bool {
	a := new(uint256.Int).SetBytes32(h[:])
	b := new(uint256.Int).SetBytes32(other[:])
	return a.Lt(b)
}

// MarshalJSON renders h as a lowercase 0x-prefixed hex string, the wire
// encoding §6 specifies for every 32-byte field.
func (h Hash32) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON accepts a hex string, optionally 0x-prefixed, per §6's
// "hex-or-bytes" parameter contract (the bytes form is handled by the RPC
// decoder, not here).
func (h *Hash32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("Hash32: %w", err)
	}
	s = strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("Hash32: decoding hex: %w", err)
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("Hash32: expected %d bytes, got %d", len(h), len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// CUID is a compute-unit identifier.
type CUID = Hash32

// ResultHash is a RandomX output.
type ResultHash = Hash32

// PhysicalCoreId identifies a physical CPU core.
type PhysicalCoreId uint32

// LogicalCoreId identifies a logical (hyperthread) CPU core.
type LogicalCoreId uint32

// EpochParameters is the immutable window a set of proofs is produced under.
type EpochParameters struct {
	GlobalNonce Hash32
	Difficulty  Hash32
}

func (e EpochParameters) String() string {
	return fmt.Sprintf("epoch{nonce=%s, difficulty=%s}", e.GlobalNonce, e.Difficulty)
}

// CUAllocation maps physical cores to the compute unit committed on them.
// Keys are unique by construction (it's a Go map).
type CUAllocation map[PhysicalCoreId]CUID

// Clone returns a shallow copy safe to mutate independently of the source.
func (a CUAllocation) Clone() CUAllocation {
	out := make(CUAllocation, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// CUStatusKind discriminates the CUStatus variants.
type CUStatusKind uint8

const (
	CUIdle CUStatusKind = iota
	CURunning
)

// CUStatus is the observed state of a single CU Prover.
type CUStatus struct {
	Kind CUStatusKind
	CUID CUID // valid only when Kind == CURunning
}

func IdleCUStatus() CUStatus          { return CUStatus{Kind: CUIdle} }
func RunningCUStatus(cu CUID) CUStatus { return CUStatus{Kind: CURunning, CUID: cu} }

func (s CUStatus) IsRunning() bool { return s.Kind == CURunning }

// CCStatusKind discriminates the CCStatus variants.
type CCStatusKind uint8

const (
	CCIdle CCStatusKind = iota
	CCRunning
)

// CCStatus is the observed state of the top-level CC Prover.
type CCStatus struct {
	Kind  CCStatusKind
	Epoch EpochParameters // valid only when Kind == CCRunning
}

func IdleCCStatus() CCStatus { return CCStatus{Kind: CCIdle} }
func RunningCCStatus(e EpochParameters) CCStatus {
	return CCStatus{Kind: CCRunning, Epoch: e}
}

// LocalNonce is a 32-byte worker-local counter. Only the low 8 bytes (the
// little-endian encoded uint64) are ever mutated; the remaining 24 bytes are
// set once at creation and carried through unchanged.
type LocalNonce [32]byte

// NewLocalNonce builds a LocalNonce from 32 random-looking bytes.
func NewLocalNonce(seed [32]byte) LocalNonce {
	return LocalNonce(seed)
}

func (n LocalNonce) counter() uint64 {
	return binary.LittleEndian.Uint64(n[:8])
}

func (n *LocalNonce) setCounter(v uint64) {
	binary.LittleEndian.PutUint64(n[:8], v)
}

// Next returns the nonce with its low-64-bit counter incremented by one,
// wrapping modulo 2^64.
func (n LocalNonce) Next() LocalNonce {
	out := n
	out.setCounter(out.counter() + 1)
	return out
}

// Prev returns the nonce with its low-64-bit counter decremented by one,
// wrapping modulo 2^64. Prev is the exact inverse of Next and vice versa.
func (n LocalNonce) Prev() LocalNonce {
	out := n
	out.setCounter(out.counter() - 1)
	return out
}

func (n LocalNonce) Bytes() [32]byte { return [32]byte(n) }

// MarshalJSON/UnmarshalJSON give LocalNonce the same hex wire encoding as
// Hash32, since CCProof.local_nonce is one of §6's "byte fields serialized
// as lowercase hex".
func (n LocalNonce) MarshalJSON() ([]byte, error) {
	return Hash32(n).MarshalJSON()
}

func (n *LocalNonce) UnmarshalJSON(data []byte) error {
	return (*Hash32)(n).UnmarshalJSON(data)
}

// RawProof is what a Hasher Worker emits on a golden result; it is consumed
// exactly once by the Utility Collector.
type RawProof struct {
	Epoch      EpochParameters
	LocalNonce LocalNonce
	CUID       CUID
	ResultHash ResultHash
}

// ProofIdx is the monotonic index the Utility Collector assigns to proofs.
// It resets to zero whenever the global nonce changes.
type ProofIdx uint64

// CCProofId identifies a persisted proof. Idx is unique within the namespace
// of the epoch's global nonce only: proofs found under different
// difficulties with the same global nonce share one idx sequence.
type CCProofId struct {
	GlobalNonce Hash32   `json:"global_nonce"`
	Difficulty  Hash32   `json:"difficulty"`
	Idx         ProofIdx `json:"idx"`
}

// CCProof is a persisted, never-mutated proof record. Field names follow
// §6's wire shape: {id:{global_nonce,difficulty,idx}, local_nonce, cu_id,
// result_hash}.
type CCProof struct {
	ID         CCProofId  `json:"id"`
	LocalNonce LocalNonce `json:"local_nonce"`
	CUID       CUID       `json:"cu_id"`
	ResultHash ResultHash `json:"result_hash"`
}

// CCPState is the advisory snapshot persisted to the state file.
type CCPState struct {
	EpochParams  *EpochParameters
	CUAllocation CUAllocation
}
