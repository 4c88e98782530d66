package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// StateStore persists the advisory CCPState snapshot at <dir>/state.json,
// writing through a draft file and renaming for crash-atomicity per §5.
type StateStore struct {
	path  string
	draft string
}

func NewStateStore(dir string) *StateStore {
	return &StateStore{
		path:  filepath.Join(dir, "state.json"),
		draft: filepath.Join(dir, "state.json.draft"),
	}
}

// Save writes state (or null, if nil, meaning "cleared") through the
// two-step draft-then-rename sequence.
func (s *StateStore) Save(state *ccptypes.CCPState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: creating state dir: %w", err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshaling state: %w", err)
	}
	if err := os.WriteFile(s.draft, data, 0o644); err != nil {
		return fmt.Errorf("store: writing state draft: %w", err)
	}
	if err := os.Rename(s.draft, s.path); err != nil {
		return fmt.Errorf("store: renaming state draft: %w", err)
	}
	return nil
}

// Load reads the persisted state, returning (nil, nil) if no state file
// exists yet or it holds a serialized null.
func (s *StateStore) Load() (*ccptypes.CCPState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: reading state file: %w", err)
	}
	var state *ccptypes.CCPState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("store: parsing state file: %w", err)
	}
	return state, nil
}

// Clear persists a null state, the representation §6 specifies for "no
// active commitment".
func (s *StateStore) Clear() error {
	return s.Save(nil)
}
