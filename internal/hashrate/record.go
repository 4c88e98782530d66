// Package hashrate collects and aggregates the hashrate records emitted by
// Hasher Workers: cache creation time, dataset initialization time, and
// hashes-checked-per-round. It also maintains per-core sliding-window
// hashrate aggregates, read through the Utility Collector's
// HashrateSnapshot.
//
// The sliding window's ring-buffer-of-recent-samples shape is grounded on
// the teacher's miner/unconfirmed.go, which tracks a bounded window of
// recently mined blocks pending confirmation; here it tracks a bounded
// window of recent per-core hashrate samples instead.
package hashrate

import (
	"time"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// RecordKind discriminates the ThreadHashrateRecord variants of
// original_source/ccp/src/hashrate/record.rs.
type RecordKind uint8

const (
	RecordCacheCreation RecordKind = iota
	RecordDatasetInitialization
	RecordCheckedHashes
)

// Record is one hashrate observation from a single logical core.
type Record struct {
	Epoch       ccptypes.EpochParameters
	CoreID      ccptypes.LogicalCoreId
	Duration    time.Duration
	Kind        RecordKind
	StartItem   uint64 // DatasetInitialization only
	ItemsCount  uint64 // DatasetInitialization only
	HashesCount int    // CheckedHashes only
}

func CacheCreation(epoch ccptypes.EpochParameters, core ccptypes.LogicalCoreId, d time.Duration) Record {
	return Record{Epoch: epoch, CoreID: core, Duration: d, Kind: RecordCacheCreation}
}

func DatasetInitialization(epoch ccptypes.EpochParameters, core ccptypes.LogicalCoreId, d time.Duration, start, count uint64) Record {
	return Record{Epoch: epoch, CoreID: core, Duration: d, Kind: RecordDatasetInitialization, StartItem: start, ItemsCount: count}
}

func CheckedHashes(epoch ccptypes.EpochParameters, core ccptypes.LogicalCoreId, d time.Duration, count int) Record {
	return Record{Epoch: epoch, CoreID: core, Duration: d, Kind: RecordCheckedHashes, HashesCount: count}
}
