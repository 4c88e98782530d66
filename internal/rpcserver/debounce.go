package rpcserver

import (
	"sync"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// commitmentDebouncer implements §6's "receive-last" coalescing: if an
// on_active_commitment arrives while a previous one is still being
// applied, only the latest survives to be applied next.
type commitmentDebouncer struct {
	handler Handler

	mu      sync.Mutex
	pending *pendingCommitment
	wake    chan struct{}
}

type pendingCommitment struct {
	epoch      ccptypes.EpochParameters
	allocation ccptypes.CUAllocation
}

func newCommitmentDebouncer(handler Handler) *commitmentDebouncer {
	return &commitmentDebouncer{handler: handler, wake: make(chan struct{}, 1)}
}

// submit replaces whatever commitment is pending with the latest one and
// wakes the apply loop if it's idle. It never blocks the RPC caller.
func (d *commitmentDebouncer) submit(epoch ccptypes.EpochParameters, allocation ccptypes.CUAllocation) {
	d.mu.Lock()
	d.pending = &pendingCommitment{epoch: epoch, allocation: allocation}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *commitmentDebouncer) run() {
	for range d.wake {
		for {
			d.mu.Lock()
			next := d.pending
			d.pending = nil
			d.mu.Unlock()

			if next == nil {
				break
			}
			d.handler.OnActiveCommitment(next.epoch, next.allocation)
		}
	}
}
