package ntp

import (
	"fmt"
	"time"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/pkg/types"
)

// BroadcastEnvelope wraps a signed transaction for gossip.
type BroadcastEnvelope struct {
	SignedTx             *types.Transaction
	ProtocolVersion      uint32
	NetworkID            uint32
	TTL                  uint8
	BroadcastTimestampMs uint64
	Priority             uint8
}

// BuildTransaction constructs, signs, and attaches the session's
// transfer transaction while in StateBroadcasting. The payload encodes
// the session id and description so the receiving side can correlate
// the confirmed transaction back to this session.
func (s *Session) BuildTransaction(fee, nonce uint64) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateBroadcasting); err != nil {
		return nil, err
	}

	nowMs := uint64(time.Now().UnixMilli())
	amount := types.Amount{Value: s.PaymentParams.Amount, Currency: s.PaymentParams.Currency}
	tx := types.NewTransaction(types.TxTransfer, s.LocalAddress, s.PeerAddress, amount, fee, nonce, nowMs)
	tx.Payload = sessionPayload(s.ID, s.PaymentParams.Description)

	crypto.SignTransaction(s.LocalKeypair, tx)

	s.Tx = tx
	s.Settlement = NewSettlementTracker(DefaultFinalityTimeoutMs)
	return tx, nil
}

// Envelope wraps tx for gossip broadcast on the nova/transactions
// topic, carrying the protocol-wide default TTL.
func Envelope(tx *types.Transaction, networkID uint32) *BroadcastEnvelope {
	return &BroadcastEnvelope{
		SignedTx:             tx,
		ProtocolVersion:      ProtocolVersion,
		NetworkID:            networkID,
		TTL:                  DefaultFanoutTTL,
		BroadcastTimestampMs: uint64(time.Now().UnixMilli()),
		Priority:             0,
	}
}

// DefaultFanoutTTL mirrors the gossip layer's frozen fanout constant
//, reused here as the envelope's starting TTL.
const DefaultFanoutTTL = 8

func sessionPayload(sessionID [16]byte, description string) []byte {
	buf := make([]byte, 0, 16+len(description))
	buf = append(buf, sessionID[:]...)
	buf = append(buf, []byte(description)...)
	return buf
}

// NoteBroadcast records that the session's transaction has been handed
// to gossip, moving the settlement tracker to Validating. It does not
// itself change Session.State; the settlement outcome is recorded on
// the tracker through MarkConfirmed or MarkRejected.
func (s *Session) NoteBroadcast() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Settlement == nil {
		return fmt.Errorf("ntp: no settlement tracker: %w", ErrOutOfOrderMessage)
	}
	s.Settlement.MarkValidating()
	return nil
}
