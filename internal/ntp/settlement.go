package ntp

import (
	"sync"
	"time"

	"github.com/novafoundation/nova-core/pkg/types"
)

// DefaultFinalityTimeoutMs is the protocol's frozen finality timeout
//.
const DefaultFinalityTimeoutMs uint64 = 30_000

// SettlementStatus is the per-session settlement tracker's state.
type SettlementStatus uint8

const (
	SettlementPending SettlementStatus = iota
	SettlementValidating
	SettlementConfirmed
	SettlementRejected
	SettlementTimedOut
)

func (s SettlementStatus) Terminal() bool {
	switch s {
	case SettlementConfirmed, SettlementRejected, SettlementTimedOut:
		return true
	default:
		return false
	}
}

// ConfirmedInfo is attached when a settlement reaches Confirmed.
type ConfirmedInfo struct {
	BlockHeight    uint64
	TxHash         types.Hash
	BlockHash      types.Hash
	TxIndex        int
	BlockTimestampMs uint64
}

// RejectedInfo is attached when a settlement reaches Rejected.
type RejectedInfo struct {
	Reason string
	Stage  Stage
}

// TimedOutInfo is attached when a settlement reaches TimedOut.
type TimedOutInfo struct {
	ElapsedMs    uint64
	ConfiguredMs uint64
}

// SettlementTracker is a per-session state machine bounded by a
// finality timeout. Terminal states are immutable: once Confirmed,
// later mutators are no-ops.
type SettlementTracker struct {
	mu sync.Mutex

	Status    SettlementStatus
	startedAt time.Time
	timeoutMs uint64

	Confirmed *ConfirmedInfo
	Rejected  *RejectedInfo
	TimedOut  *TimedOutInfo
}

// NewSettlementTracker creates a tracker in Pending, timing out after
// timeoutMs milliseconds if never confirmed or rejected.
func NewSettlementTracker(timeoutMs uint64) *SettlementTracker {
	return &SettlementTracker{
		Status:    SettlementPending,
		startedAt: time.Now(),
		timeoutMs: timeoutMs,
	}
}

// MarkValidating transitions Pending to Validating. A no-op once
// terminal or already past Pending.
func (t *SettlementTracker) MarkValidating() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != SettlementPending {
		return
	}
	t.Status = SettlementValidating
}

// MarkConfirmed transitions to Confirmed, carrying info. A no-op on a
// terminal tracker.
func (t *SettlementTracker) MarkConfirmed(info ConfirmedInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status.Terminal() {
		return
	}
	t.Status = SettlementConfirmed
	t.Confirmed = &info
}

// MarkRejected transitions to Rejected, carrying reason and stage. A
// no-op on a terminal tracker.
func (t *SettlementTracker) MarkRejected(reason string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status.Terminal() {
		return
	}
	t.Status = SettlementRejected
	t.Rejected = &RejectedInfo{Reason: reason, Stage: stage}
}

// CheckTimeout is the only transition that can fire without external
// input: callers poll it, and if the tracker is non-terminal and
// elapsed time has reached timeoutMs, it transitions to TimedOut.
func (t *SettlementTracker) CheckTimeout() SettlementStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status.Terminal() {
		return t.Status
	}

	elapsed := uint64(time.Since(t.startedAt).Milliseconds())
	if elapsed >= t.timeoutMs {
		t.Status = SettlementTimedOut
		t.TimedOut = &TimedOutInfo{ElapsedMs: elapsed, ConfiguredMs: t.timeoutMs}
	}
	return t.Status
}
