package rpcserver

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// hexBytes32 decodes a 32-byte RPC parameter accepted either as a hex
// string (optionally 0x-prefixed) or as a JSON array of byte values, per
// §6's "hex-or-bytes" parameter contract.
type hexBytes32 [32]byte

func (h *hexBytes32) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s := strings.TrimPrefix(asString, "0x")
		decoded, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("rpcserver: decoding hex param: %w", err)
		}
		if len(decoded) != 32 {
			return fmt.Errorf("rpcserver: expected 32 bytes, got %d", len(decoded))
		}
		copy(h[:], decoded)
		return nil
	}

	var asBytes []byte
	if err := json.Unmarshal(data, &asBytes); err != nil {
		return fmt.Errorf("rpcserver: param is neither a hex string nor a byte array: %w", err)
	}
	if len(asBytes) != 32 {
		return fmt.Errorf("rpcserver: expected 32 bytes, got %d", len(asBytes))
	}
	copy(h[:], asBytes)
	return nil
}

func decodeAllocation(raw map[string]hexBytes32) (ccptypes.CUAllocation, error) {
	out := make(ccptypes.CUAllocation, len(raw))
	for coreStr, cuid := range raw {
		core, err := strconv.ParseUint(coreStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("rpcserver: cu_allocation key %q is not a decimal physical core id: %w", coreStr, err)
		}
		out[ccptypes.PhysicalCoreId(core)] = ccptypes.CUID(cuid)
	}
	return out, nil
}

type errUnknownMethod string

func (e errUnknownMethod) Error() string { return "rpcserver: unknown method " + string(e) }
