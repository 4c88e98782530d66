// Package store implements §6's proof store (one file per proof, named by
// its decimal index) and state store (two-step-rename state.json).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// ProofStore owns a single directory where each file is one serialized
// CCProof, named by its decimal idx. Only the Utility Collector writes to
// it, per §5's ownership note.
type ProofStore struct {
	dir string
}

func NewProofStore(dir string) *ProofStore { return &ProofStore{dir: dir} }

// Put writes proof to <dir>/<idx>, creating the directory if necessary.
// Writes are whole-file, matching §6's "writes are whole-file" contract.
func (s *ProofStore) Put(proof ccptypes.CCProof) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: creating proof dir: %w", err)
	}
	data, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("store: marshaling proof %d: %w", proof.ID.Idx, err)
	}
	name := strconv.FormatUint(uint64(proof.ID.Idx), 10)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: writing proof %d: %w", proof.ID.Idx, err)
	}
	return nil
}

// After reads every file in the directory whose name parses as a u64,
// skipping anything else (§6: "readers tolerate non-numeric filenames by
// skipping them"), and returns the proofs with idx > after, sorted
// ascending by idx.
func (s *ProofStore) After(after ccptypes.ProofIdx) ([]ccptypes.CCProof, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: reading proof dir: %w", err)
	}

	var proofs []ccptypes.CCProof
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, err := strconv.ParseUint(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		if ccptypes.ProofIdx(idx) <= after {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("store: reading proof file %s: %w", entry.Name(), err)
		}
		var p ccptypes.CCProof
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("store: parsing proof file %s: %w", entry.Name(), err)
		}
		proofs = append(proofs, p)
	}

	sort.Slice(proofs, func(i, j int) bool { return proofs[i].ID.Idx < proofs[j].ID.Idx })
	return proofs, nil
}

// Clean removes and recreates the proof directory — §4.1's CleanProofCache
// pre-action, executed by the Utility as a serial step before the first new
// proof of an epoch is accepted.
func (s *ProofStore) Clean() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("store: removing proof dir: %w", err)
	}
	return os.MkdirAll(s.dir, 0o755)
}
