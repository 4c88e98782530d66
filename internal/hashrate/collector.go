package hashrate

import (
	"container/ring"
	"sync"
	"time"

	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/log"
)

// defaultWindow is how long a CheckedHashes sample stays in a core's sliding
// window before shiftLocked drops it, adapted from the teacher's unconfirmed
// block set's confirmation-depth eviction.
const defaultWindow = 60 * time.Second

type sample struct {
	at     time.Time
	count  int
	nanos  time.Duration
}

// perCoreWindow is a ring of recent CheckedHashes samples for one logical
// core, mirroring unconfirmedBlocks' ring.Ring-based bounded set.
type perCoreWindow struct {
	mu      sync.RWMutex
	samples *ring.Ring // nil when empty; each Value is a *sample
	window  time.Duration
}

func newPerCoreWindow(window time.Duration) *perCoreWindow {
	return &perCoreWindow{window: window}
}

func (w *perCoreWindow) insert(s sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	item := ring.New(1)
	item.Value = &s
	if w.samples == nil {
		w.samples = item
	} else {
		w.samples.Move(-1).Link(item)
	}
	w.shiftLocked(s.at)
}

// shiftLocked drops samples older than the window, walking from the oldest
// element exactly as unconfirmedBlocks.Shift walks from the lowest index.
func (w *perCoreWindow) shiftLocked(now time.Time) {
	for w.samples != nil {
		oldest := w.samples.Value.(*sample)
		if now.Sub(oldest.at) <= w.window {
			break
		}
		if w.samples.Value == w.samples.Next().Value {
			w.samples = nil
			break
		}
		w.samples = w.samples.Move(-1)
		w.samples.Unlink(1)
		w.samples = w.samples.Move(1)
	}
}

// hashesPerSecond sums every live sample's count over its duration.
func (w *perCoreWindow) hashesPerSecond() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.samples == nil {
		return 0
	}
	var totalCount int
	var totalNanos time.Duration
	w.samples.Do(func(v interface{}) {
		s := v.(*sample)
		totalCount += s.count
		totalNanos += s.nanos
	})
	if totalNanos == 0 {
		return 0
	}
	return float64(totalCount) / totalNanos.Seconds()
}

// Collector aggregates hashrate records per logical core into sliding-window
// hashes/sec figures, and tracks cumulative lifetime per-core counters of
// checked hashes and found proofs.
type Collector struct {
	mu          sync.Mutex
	windows     map[ccptypes.LogicalCoreId]*perCoreWindow
	windowSize  time.Duration
	totalHashes map[ccptypes.LogicalCoreId]uint64
	totalProofs map[ccptypes.LogicalCoreId]uint64
	log         log.Logger
}

func NewCollector() *Collector {
	return &Collector{
		windows:     make(map[ccptypes.LogicalCoreId]*perCoreWindow),
		windowSize:  defaultWindow,
		totalHashes: make(map[ccptypes.LogicalCoreId]uint64),
		totalProofs: make(map[ccptypes.LogicalCoreId]uint64),
		log:         log.New("component", "hashrate"),
	}
}

// Observe feeds one hashrate record into the collector. It is intended to
// be called only from the single-consumer Utility Collector loop (no lock
// is held across calls other than the one here, matching §4.4's ownership
// model: the counters are conceptually single-task state).
func (c *Collector) Observe(r Record) {
	switch r.Kind {
	case RecordCheckedHashes:
		c.windowFor(r.CoreID).insert(sample{at: time.Now(), count: r.HashesCount, nanos: r.Duration})
		c.mu.Lock()
		c.totalHashes[r.CoreID] += uint64(r.HashesCount)
		c.mu.Unlock()
	case RecordCacheCreation:
		c.log.Debug("cache created", "core", r.CoreID, "elapsed", r.Duration)
	case RecordDatasetInitialization:
		c.log.Debug("dataset range initialized", "core", r.CoreID, "start", r.StartItem, "count", r.ItemsCount, "elapsed", r.Duration)
	}
}

// ObserveProofFound increments the lifetime proof counter for a core; kept
// separate from Observe because proof discovery isn't a hashrate.Record
// variant (it travels over S→U as ProofFound, not HashrateRecord).
func (c *Collector) ObserveProofFound(core ccptypes.LogicalCoreId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalProofs[core]++
}

func (c *Collector) windowFor(core ccptypes.LogicalCoreId) *perCoreWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[core]
	if !ok {
		w = newPerCoreWindow(c.windowSize)
		c.windows[core] = w
	}
	return w
}

// Snapshot is a point-in-time read of the aggregates, returned by the
// Utility Collector's HashrateSnapshot() call.
type Snapshot struct {
	HashesPerSecond map[ccptypes.LogicalCoreId]float64
	TotalHashes     map[ccptypes.LogicalCoreId]uint64
	TotalProofs     map[ccptypes.LogicalCoreId]uint64
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	cores := make([]ccptypes.LogicalCoreId, 0, len(c.windows))
	for core := range c.windows {
		cores = append(cores, core)
	}
	totalHashes := make(map[ccptypes.LogicalCoreId]uint64, len(c.totalHashes))
	for k, v := range c.totalHashes {
		totalHashes[k] = v
	}
	totalProofs := make(map[ccptypes.LogicalCoreId]uint64, len(c.totalProofs))
	for k, v := range c.totalProofs {
		totalProofs[k] = v
	}
	c.mu.Unlock()

	rates := make(map[ccptypes.LogicalCoreId]float64, len(cores))
	for _, core := range cores {
		rates[core] = c.windowFor(core).hashesPerSecond()
	}

	return Snapshot{HashesPerSecond: rates, TotalHashes: totalHashes, TotalProofs: totalProofs}
}
