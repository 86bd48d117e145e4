// Package contracts implements the credit escrow and dispute
// resolution state machines, built in the idiom of internal/consensus
// and internal/ntp: plain structs guarded by sync.Mutex, var Err*
// sentinel blocks, and explicit state transitions rather than a
// generic workflow engine.
package contracts

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novafoundation/nova-core/pkg/types"
)

// Escrow errors.
var (
	ErrEscrowInvalidState  = errors.New("contracts: escrow not in a state that allows this operation")
	ErrEscrowOverfunded    = errors.New("contracts: funding would exceed principal")
	ErrEscrowOverreleased  = errors.New("contracts: release would exceed funded amount")
	ErrEscrowOverrepaid    = errors.New("contracts: repayment total overflows")
	ErrEscrowZeroAmount    = errors.New("contracts: amount must be nonzero")
	ErrEscrowAlreadyFrozen = errors.New("contracts: escrow is already disputed")
)

// EscrowStatus is the credit escrow's lifecycle state.
type EscrowStatus uint8

const (
	EscrowPending EscrowStatus = iota
	EscrowFunded
	EscrowActive
	EscrowCompleted
	EscrowDefaulted
	EscrowDisputed
)

func (s EscrowStatus) Terminal() bool {
	switch s {
	case EscrowCompleted, EscrowDefaulted:
		return true
	default:
		return false
	}
}

func (s EscrowStatus) String() string {
	switch s {
	case EscrowPending:
		return "pending"
	case EscrowFunded:
		return "funded"
	case EscrowActive:
		return "active"
	case EscrowCompleted:
		return "completed"
	case EscrowDefaulted:
		return "defaulted"
	case EscrowDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// Terms are the fixed economics of a credit escrow, set at creation
// and never mutated.
type Terms struct {
	Principal        uint64
	InterestRateBps  uint32
	TotalOwed        uint64
	RepaymentDeadline time.Time
	GracePeriod       time.Duration
}

// Escrow is a credit escrow between a lender and borrower. Disputing
// an escrow freezes Release and Repay until the dispute resolves and
// calls Unfreeze; it does not itself choose a resolution.
type Escrow struct {
	mu sync.Mutex

	ID       uuid.UUID
	Lender   types.Address
	Borrower types.Address
	Terms    Terms

	Status EscrowStatus

	FundedAmount   uint64
	ReleasedAmount uint64
	RepaidAmount   uint64

	// preDisputeStatus records the status held when Dispute was called.
	// Unfreeze does not read it; the dispute layer picks the status.
	preDisputeStatus EscrowStatus

	CreatedAt time.Time
}

// NewEscrow creates a Pending escrow awaiting funding.
func NewEscrow(lender, borrower types.Address, terms Terms) *Escrow {
	return &Escrow{
		ID:        uuid.New(),
		Lender:    lender,
		Borrower:  borrower,
		Terms:     terms,
		Status:    EscrowPending,
		CreatedAt: time.Now(),
	}
}

// Fund adds amount to the escrow's funded balance. Only valid while
// Pending; crosses to Funded once the full principal is covered.
func (e *Escrow) Fund(amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return ErrEscrowZeroAmount
	}
	if e.Status != EscrowPending {
		return ErrEscrowInvalidState
	}
	next := e.FundedAmount + amount
	if next < e.FundedAmount || next > e.Terms.Principal {
		return ErrEscrowOverfunded
	}
	e.FundedAmount = next
	if e.FundedAmount == e.Terms.Principal {
		e.Status = EscrowFunded
	}
	return nil
}

// ReleaseToBorrower releases amount of the funded principal to the
// borrower. Only valid while Funded; partial releases are allowed
// until the full funded amount has been released, which crosses to
// Active.
func (e *Escrow) ReleaseToBorrower(amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return ErrEscrowZeroAmount
	}
	if e.Status != EscrowFunded {
		return ErrEscrowInvalidState
	}
	next := e.ReleasedAmount + amount
	if next < e.ReleasedAmount || next > e.FundedAmount {
		return ErrEscrowOverreleased
	}
	e.ReleasedAmount = next
	if e.ReleasedAmount == e.FundedAmount {
		e.Status = EscrowActive
	}
	return nil
}

// Repay applies amount toward the total owed. Only valid while Active;
// crosses to Completed once total owed is met or exceeded.
func (e *Escrow) Repay(amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return ErrEscrowZeroAmount
	}
	if e.Status != EscrowActive {
		return ErrEscrowInvalidState
	}
	next := e.RepaidAmount + amount
	if next < e.RepaidAmount {
		return ErrEscrowOverrepaid
	}
	e.RepaidAmount = next
	if e.RepaidAmount >= e.Terms.TotalOwed {
		e.Status = EscrowCompleted
	}
	return nil
}

// CheckDefault transitions an Active escrow to Defaulted once now has
// passed the repayment deadline plus grace period. Returns whether a
// default was recorded on this call.
func (e *Escrow) CheckDefault(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status != EscrowActive {
		return false
	}
	if now.Before(e.Terms.RepaymentDeadline.Add(e.Terms.GracePeriod)) {
		return false
	}
	e.Status = EscrowDefaulted
	return true
}

// Dispute freezes a non-terminal escrow, preventing further Release
// and Repay calls until Unfreeze is called by the dispute layer.
func (e *Escrow) Dispute() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.Terminal() {
		return ErrEscrowInvalidState
	}
	if e.Status == EscrowDisputed {
		return ErrEscrowAlreadyFrozen
	}
	e.preDisputeStatus = e.Status
	e.Status = EscrowDisputed
	return nil
}

// Unfreeze moves a Disputed escrow to the status `to` chosen by the
// dispute layer (see Dispute.EscrowOutcome: Defaulted for a ruling in
// the initiator's favor, Active otherwise). It does not restore the
// status held before Dispute on its own and does not check `to`.
func (e *Escrow) Unfreeze(to EscrowStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status != EscrowDisputed {
		return ErrEscrowInvalidState
	}
	e.Status = to
	return nil
}
