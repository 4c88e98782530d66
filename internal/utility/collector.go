// Package utility implements §4.4's Utility Collector: the single consumer
// of the fan-in S→U channel shared by every Hasher Worker, responsible for
// proof-index assignment, durable persistence, hashrate aggregation, and
// error demultiplexing.
package utility

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hasherworker"
	"github.com/capacitymesh/ccp/internal/hashrate"
	"github.com/capacitymesh/ccp/internal/log"
	"github.com/capacitymesh/ccp/internal/store"
)

// dedupCacheSize bounds the recent-proof-hash dedup cache; large enough to
// absorb a retry burst from one worker without growing unbounded.
const dedupCacheSize = 4096

// MetricsSink receives the two counter events the Prometheus endpoint
// tracks (§6); utility is the only place both checked-hash counts and
// found-proof events pass through on their way out of the hashing core.
type MetricsSink interface {
	AddCheckedHashes(core ccptypes.LogicalCoreId, n int)
	IncFoundsProofs(core ccptypes.LogicalCoreId)
}

// Collector is the single-consumer loop described in §4.4. It owns the
// proof store and is the only writer to it (§5).
type Collector struct {
	proofs    *store.ProofStore
	hashrate  *hashrate.Collector
	errorSink func(core ccptypes.LogicalCoreId, err error, fatal bool)
	metrics   MetricsSink
	log       log.Logger

	mu            sync.Mutex
	nextIdx       ccptypes.ProofIdx
	lastSeenNonce ccptypes.Hash32
	haveSeenNonce bool
	dedup         *lru.Cache[ccptypes.Hash32, struct{}]

	in       chan hasherworker.ToUtility
	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a Collector. errorSink is called for every ErrorHappened
// message after non-fatal ones have been downgraded to a warning log line;
// it is the CC Prover's error sink per §4.4.
func New(proofs *store.ProofStore, errorSink func(core ccptypes.LogicalCoreId, err error, fatal bool)) *Collector {
	dedup, _ := lru.New[ccptypes.Hash32, struct{}](dedupCacheSize)
	return &Collector{
		proofs:    proofs,
		hashrate:  hashrate.NewCollector(),
		errorSink: errorSink,
		log:       log.New("component", "utility"),
		dedup:     dedup,
		in:        make(chan hasherworker.ToUtility, 1),
		done:      make(chan struct{}),
	}
}

// Inbox is the shared S→U channel every Hasher Worker is constructed with.
func (c *Collector) Inbox() chan hasherworker.ToUtility { return c.in }

// SetMetrics attaches the Prometheus sink. Safe to call once before Run;
// a nil Collector.metrics (the default) simply skips metric updates.
func (c *Collector) SetMetrics(m MetricsSink) { c.metrics = m }

// Run is the collector's cooperative loop; it returns when Stop is called
// and the inbox has been drained.
func (c *Collector) Run() {
	for {
		select {
		case msg := <-c.in:
			c.handle(msg)
		case <-c.done:
			c.drainRemaining()
			return
		}
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case msg := <-c.in:
			c.handle(msg)
		default:
			return
		}
	}
}

// Stop signals Run's loop to exit after draining whatever is already
// queued; a graceful shutdown per §4.4's "drain the channel if the intent
// is graceful, then return."
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Collector) handle(msg hasherworker.ToUtility) {
	switch m := msg.(type) {
	case hasherworker.ProofFound:
		c.handleProof(m)
	case hasherworker.HashrateReport:
		c.hashrate.Observe(m.Record)
		if c.metrics != nil && m.Record.Kind == hashrate.RecordCheckedHashes {
			c.metrics.AddCheckedHashes(m.CoreID, m.Record.HashesCount)
		}
	case hasherworker.ErrorHappened:
		c.handleError(m)
	}
}

func (c *Collector) handleProof(m hasherworker.ProofFound) {
	// A result hash already seen since the last CleanProofCache is dropped;
	// only the first sighting gets an index.
	if c.dedup.Contains(m.Proof.ResultHash) {
		return
	}
	c.dedup.Add(m.Proof.ResultHash, struct{}{})

	c.mu.Lock()
	if !c.haveSeenNonce || m.Proof.Epoch.GlobalNonce != c.lastSeenNonce {
		c.nextIdx = 0
		c.lastSeenNonce = m.Proof.Epoch.GlobalNonce
		c.haveSeenNonce = true
	}
	idx := c.nextIdx
	c.nextIdx++
	c.mu.Unlock()

	proof := ccptypes.CCProof{
		ID: ccptypes.CCProofId{
			GlobalNonce: m.Proof.Epoch.GlobalNonce,
			Difficulty:  m.Proof.Epoch.Difficulty,
			Idx:         idx,
		},
		LocalNonce: m.Proof.LocalNonce,
		CUID:       m.Proof.CUID,
		ResultHash: m.Proof.ResultHash,
	}
	if err := c.proofs.Put(proof); err != nil {
		c.log.Error("failed to persist proof", "idx", idx, "err", err)
		return
	}
	c.hashrate.ObserveProofFound(m.CoreID)
	if c.metrics != nil {
		c.metrics.IncFoundsProofs(m.CoreID)
	}
}

func (c *Collector) handleError(m hasherworker.ErrorHappened) {
	if !m.Fatal {
		c.log.Warn("non-fatal worker error", "core", m.CoreID, "err", m.Err)
	} else {
		c.log.Error("fatal worker error", "core", m.CoreID, "err", m.Err)
	}
	if c.errorSink != nil {
		c.errorSink(m.CoreID, m.Err, m.Fatal)
	}
}

// CleanProofCache executes §4.1's CleanProofCache pre-action as a serial
// step; callers must invoke it before the first new proof of an epoch can
// be accepted, which in practice means calling it before dispatching any
// NewCCJob for the new epoch.
func (c *Collector) CleanProofCache() error {
	c.mu.Lock()
	c.nextIdx = 0
	c.haveSeenNonce = false
	c.mu.Unlock()
	c.dedup.Purge()
	return c.proofs.Clean()
}

// HashrateSnapshot returns the current sliding-window hashrate aggregates
// and lifetime per-core counters. The Prometheus counters are fed through
// MetricsSink, not from this snapshot.
func (c *Collector) HashrateSnapshot() hashrate.Snapshot {
	return c.hashrate.Snapshot()
}
