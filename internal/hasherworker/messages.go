package hasherworker

import (
	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/hashrate"
	"github.com/capacitymesh/ccp/internal/randomx"
)

// HASHES_PER_ROUND of §4.3: how many hashes a CCJob computes before polling
// its mailbox for new commands.
const HashesPerRound = 1024

// Command is a message sent over the depth-1 A→S channel. Two-phase
// commands (Create/Allocate/Initialize/Pause) are request-reply; NewCCJob,
// PinThread and Stop are one-way.
type Command interface{ isCommand() }

type CreateCache struct {
	Epoch ccptypes.EpochParameters
	CUID  ccptypes.CUID
	Flags randomx.Flags
}

type AllocateDataset struct {
	Flags randomx.Flags
}

type InitializeDataset struct {
	Epoch      ccptypes.EpochParameters
	Cache      randomx.Cache
	Dataset    randomx.Dataset
	StartItem  uint64
	ItemsCount uint64
}

type NewCCJob struct {
	Handle randomx.DatasetHandle
	Flags  randomx.Flags
	Epoch  ccptypes.EpochParameters
	CUID   ccptypes.CUID
}

type PinThread struct {
	LogicalCore ccptypes.LogicalCoreId
}

type Pause struct{}

type Stop struct{}

func (CreateCache) isCommand()       {}
func (AllocateDataset) isCommand()   {}
func (InitializeDataset) isCommand() {}
func (NewCCJob) isCommand()          {}
func (PinThread) isCommand()         {}
func (Pause) isCommand()             {}
func (Stop) isCommand()              {}

// Reply is a message sent over the depth-1 S→A channel in answer to a
// two-phase Command.
type Reply interface{ isReply() }

type CacheCreated struct{ Cache randomx.Cache }
type DatasetAllocated struct{ Dataset randomx.Dataset }
type DatasetInitialized struct{}
type Paused struct{}

// Failed answers any two-phase command that could not be completed; the
// façade surfaces Err to its caller instead of the expected reply.
type Failed struct{ Err error }

func (CacheCreated) isReply()       {}
func (DatasetAllocated) isReply()   {}
func (DatasetInitialized) isReply() {}
func (Paused) isReply()             {}
func (Failed) isReply()             {}

// ToUtility is a message sent over the shared, fan-in S→U channel every
// worker shares with the Utility Collector.
type ToUtility interface{ isToUtility() }

type ProofFound struct {
	CoreID ccptypes.LogicalCoreId
	Proof  ccptypes.RawProof
}

type HashrateReport struct {
	CoreID ccptypes.LogicalCoreId
	Record hashrate.Record
}

type ErrorHappened struct {
	CoreID ccptypes.LogicalCoreId
	Err    error
	Fatal  bool
}

func (ProofFound) isToUtility()     {}
func (HashrateReport) isToUtility() {}
func (ErrorHappened) isToUtility()  {}
