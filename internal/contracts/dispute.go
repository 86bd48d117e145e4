package contracts

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novafoundation/nova-core/pkg/types"
)

// Dispute errors.
var (
	ErrDisputeInvalidState    = errors.New("contracts: dispute not in a state that allows this operation")
	ErrDisputeUnauthorized    = errors.New("contracts: caller is not a party to this dispute")
	ErrDisputeNoSignature     = errors.New("contracts: arbiter resolution requires a signature")
	ErrDisputeAlreadyResolved = errors.New("contracts: dispute already resolved")
)

// DisputeStatus is the arbitration lifecycle state.
type DisputeStatus uint8

const (
	DisputeOpen DisputeStatus = iota
	DisputeUnderReview
	DisputeResolvedForInitiator
	DisputeResolvedForRespondent
	DisputeCancelled
)

func (s DisputeStatus) Terminal() bool {
	switch s {
	case DisputeResolvedForInitiator, DisputeResolvedForRespondent, DisputeCancelled:
		return true
	default:
		return false
	}
}

func (s DisputeStatus) String() string {
	switch s {
	case DisputeOpen:
		return "open"
	case DisputeUnderReview:
		return "under_review"
	case DisputeResolvedForInitiator:
		return "resolved_for_initiator"
	case DisputeResolvedForRespondent:
		return "resolved_for_respondent"
	case DisputeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Resolution is the outcome an arbiter rules for.
type Resolution uint8

const (
	ForInitiator Resolution = iota
	ForRespondent
)

// Evidence anchors an off-chain payload (document, log, screenshot) by
// its content hash, so the chain records non-repudiation without
// storing the payload itself.
type Evidence struct {
	SubmittedBy types.Address
	Description string
	DataHash    types.Hash
	SubmittedAt time.Time
}

// Dispute is an arbitration case over a credit escrow, opened by
// either party.
type Dispute struct {
	mu sync.Mutex

	ID        uuid.UUID
	EscrowID  uuid.UUID
	Initiator types.Address
	Respondent types.Address
	Reason    string

	Evidence []Evidence
	Status   DisputeStatus

	Resolution         Resolution
	ArbiterSignature   []byte

	CreatedAt  time.Time
	ResolvedAt time.Time
}

// NewDispute opens a dispute in the Open state.
func NewDispute(escrowID uuid.UUID, initiator, respondent types.Address, reason string) *Dispute {
	return &Dispute{
		ID:         uuid.New(),
		EscrowID:   escrowID,
		Initiator:  initiator,
		Respondent: respondent,
		Reason:     reason,
		Status:     DisputeOpen,
		CreatedAt:  time.Now(),
	}
}

func (d *Dispute) isParty(addr types.Address) bool {
	return addr == d.Initiator || addr == d.Respondent
}

// SubmitEvidence records a piece of evidence from either party. Only
// valid while Open or UnderReview; the first submission moves Open to
// UnderReview.
func (d *Dispute) SubmitEvidence(party types.Address, description string, dataHash types.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isParty(party) {
		return ErrDisputeUnauthorized
	}
	if d.Status != DisputeOpen && d.Status != DisputeUnderReview {
		return ErrDisputeInvalidState
	}

	d.Evidence = append(d.Evidence, Evidence{
		SubmittedBy: party,
		Description: description,
		DataHash:    dataHash,
		SubmittedAt: time.Now(),
	})
	if d.Status == DisputeOpen {
		d.Status = DisputeUnderReview
	}
	return nil
}

// Resolve records an arbiter's binding ruling. arbiterSignature must
// be non-empty; full signature verification against the arbiter's
// public key happens at the execution layer, which has access to the
// validator set this dispute's arbiter is drawn from.
func (d *Dispute) Resolve(resolution Resolution, arbiterSignature []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Status == DisputeResolvedForInitiator || d.Status == DisputeResolvedForRespondent {
		return ErrDisputeAlreadyResolved
	}
	if d.Status != DisputeOpen && d.Status != DisputeUnderReview {
		return ErrDisputeInvalidState
	}
	if len(arbiterSignature) == 0 {
		return ErrDisputeNoSignature
	}

	d.Resolution = resolution
	d.ArbiterSignature = arbiterSignature
	switch resolution {
	case ForInitiator:
		d.Status = DisputeResolvedForInitiator
	default:
		d.Status = DisputeResolvedForRespondent
	}
	d.ResolvedAt = time.Now()
	return nil
}

// Cancel withdraws the dispute. Only the initiator may cancel, and
// only before resolution.
func (d *Dispute) Cancel(caller types.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.Initiator {
		return ErrDisputeUnauthorized
	}
	if d.Status != DisputeOpen && d.Status != DisputeUnderReview {
		return ErrDisputeInvalidState
	}
	d.Status = DisputeCancelled
	d.ResolvedAt = time.Now()
	return nil
}

// EscrowOutcome maps a resolved dispute onto the status its associated
// Escrow should be unfrozen to.
func (d *Dispute) EscrowOutcome() (EscrowStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.Status {
	case DisputeResolvedForInitiator:
		return EscrowDefaulted, true
	case DisputeResolvedForRespondent:
		return EscrowActive, true
	case DisputeCancelled:
		return EscrowActive, true
	default:
		return 0, false
	}
}
