// Package ntp implements the Nova Transfer Protocol: the five-step
// handshake → proof-of-funds → broadcast → settlement → receipt
// exchange between a payer (initiator) and payee (responder).
// Its shape borrows the mutex-guarded-struct and typed-error idioms
// used in internal/consensus and internal/mempool.
package ntp

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/internal/zkp"
	"github.com/novafoundation/nova-core/pkg/types"
)

// ProtocolVersion is the NTP wire version this implementation speaks.
const ProtocolVersion uint32 = 1

// PaymentParams is the payee's choice of amount, currency, and
// human-readable description, proposed during the handshake.
type PaymentParams struct {
	Amount      uint64
	Currency    types.Currency
	Description string
}

// Session is one side's view of an NTP negotiation. It holds peer
// public keys and addresses by value, not by pointer, so initiator and
// responder sessions never form an ownership cycle; they reference each
// other only by SessionID.
type Session struct {
	mu sync.Mutex

	ID   uuid.UUID
	Role Role

	State State

	LocalKeypair *crypto.Keypair
	LocalAddress types.Address

	PeerPublicKey []byte
	PeerAddress   types.Address

	localEphemeral      *crypto.EphemeralKeypair
	peerEphemeralPublic []byte

	sessionKey []byte
	cipher     *crypto.SessionCipher

	PaymentParams PaymentParams

	commitment *zkp.Commitment
	blinder    []byte

	Tx *types.Transaction

	Settlement *SettlementTracker

	Receipt *Receipt

	RejectReason string
	RejectStage  Stage

	CreatedAt time.Time
}

// NewInitiatorSession begins a session as the paying side, in StateIdle.
func NewInitiatorSession(local *crypto.Keypair) *Session {
	return &Session{
		Role:         RoleInitiator,
		State:        StateIdle,
		LocalKeypair: local,
		LocalAddress: local.Address(),
		CreatedAt:    time.Now(),
	}
}

// NewResponderSession begins a session as the receiving side, in
// StateIdle. SessionID is assigned once the handshake is answered.
func NewResponderSession(local *crypto.Keypair) *Session {
	return &Session{
		Role:         RoleResponder,
		State:        StateIdle,
		LocalKeypair: local,
		LocalAddress: local.Address(),
		CreatedAt:    time.Now(),
	}
}

// Cipher returns the session's authenticated-encryption cipher, valid
// only after the handshake completes.
func (s *Session) Cipher() *crypto.SessionCipher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cipher
}
