// Package ccpapi holds small request-shaped helpers for the orchestrator
// RPC surface that don't belong in the transport package itself.
package ccpapi

import "github.com/pborman/uuid"

// NewCorrelationID returns a fresh id to attach to one
// ccp_on_active_commitment call for log correlation across the debounce
// loop and the eventual CU Prover apply.
func NewCorrelationID() string {
	return uuid.New()
}
