package ntp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/pkg/types"
)

// Receipt errors.
var (
	ErrInvalidReceiptSignature = errors.New("ntp: receipt signature invalid")
	ErrReceiptAlreadySigned    = errors.New("ntp: receipt already carries this party's signature")
)

// Receipt is the proof of settlement exchanged at the end of a session.
// It is fully signed iff both InitiatorSignature and ResponderSignature are
// present and verify over the same canonical bytes.
type Receipt struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	TxHash      types.Hash
	BlockHeight uint64
	Sender      types.Address
	SenderPublicKey []byte
	Receiver        types.Address
	ReceiverPublicKey []byte
	Amount      uint64
	Currency    types.Currency
	TimestampMs uint64

	InitiatorSignature []byte
	ResponderSignature []byte
}

// CanonicalSigningBytes builds the exact byte string both parties sign
//:
//
//	receipt_id ":" session_id ":" tx_hash ":" block_height ":" sender ":"
//	receiver ":" amount ":" currency ":" timestamp ":" hex(sender_pk)
func (r *Receipt) CanonicalSigningBytes() []byte {
	s := r.ID.String() + ":" +
		r.SessionID.String() + ":" +
		r.TxHash.String() + ":" +
		strconv.FormatUint(r.BlockHeight, 10) + ":" +
		r.Sender.Encode(types.MainnetPrefix) + ":" +
		r.Receiver.Encode(types.MainnetPrefix) + ":" +
		strconv.FormatUint(r.Amount, 10) + ":" +
		currencyLabel(r.Currency) + ":" +
		strconv.FormatUint(r.TimestampMs, 10) + ":" +
		hex.EncodeToString(r.SenderPublicKey)
	return []byte(s)
}

func currencyLabel(c types.Currency) string {
	switch c.Kind {
	case types.CurrencyNative:
		return "native"
	case types.CurrencyCredit:
		return "credit"
	default:
		return c.Ticker
	}
}

// NewReceipt constructs the unsigned receipt for a confirmed
// settlement, on the initiator side.
func NewReceipt(sessionID uuid.UUID, confirmed ConfirmedInfo, sender, receiver types.Address, senderPK, receiverPK []byte, amount uint64, currency types.Currency, timestampMs uint64) *Receipt {
	return &Receipt{
		ID:                uuid.New(),
		SessionID:         sessionID,
		TxHash:            confirmed.TxHash,
		BlockHeight:       confirmed.BlockHeight,
		Sender:            sender,
		SenderPublicKey:   senderPK,
		Receiver:          receiver,
		ReceiverPublicKey: receiverPK,
		Amount:            amount,
		Currency:          currency,
		TimestampMs:       timestampMs,
	}
}

// SignAsInitiator signs the canonical bytes with the initiator's key
// and advances the session from ReceiptSigning to Receipted once the
// signature is attached. This does not wait for the counter-signature:
// the initiator's own view completes once it has sent its signature.
func (s *Session) SignAsInitiator(receipt *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateReceiptSigning); err != nil {
		return err
	}
	if len(receipt.InitiatorSignature) != 0 {
		return ErrReceiptAlreadySigned
	}

	receipt.InitiatorSignature = s.LocalKeypair.Sign(receipt.CanonicalSigningBytes())
	s.Receipt = receipt
	s.State = StateReceipted
	return nil
}

// CountersignAsResponder verifies the initiator's signature over
// receipt, then attaches the responder's own signature, advancing
// ReceiptCountersigning to Receipted.
func (s *Session) CountersignAsResponder(receipt *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateReceiptCountersigning); err != nil {
		return err
	}

	if err := crypto.Verify(receipt.SenderPublicKey, receipt.CanonicalSigningBytes(), receipt.InitiatorSignature); err != nil {
		s.State = StateRejected
		s.RejectReason = "invalid initiator receipt signature"
		s.RejectStage = StageSignature
		return ErrInvalidReceiptSignature
	}

	receipt.ResponderSignature = s.LocalKeypair.Sign(receipt.CanonicalSigningBytes())
	s.Receipt = receipt
	s.State = StateReceipted
	return nil
}

// VerifyReceipt checks that a receipt is fully signed: both signatures
// present and both verifying over the same canonical bytes. Any
// tampering with a signed field (e.g. amount modified after signing)
// makes this fail, since the canonical bytes it recomputes will no
// longer match what was signed.
func VerifyReceipt(receipt *Receipt) error {
	if len(receipt.InitiatorSignature) == 0 || len(receipt.ResponderSignature) == 0 {
		return ErrInvalidReceiptSignature
	}
	msg := receipt.CanonicalSigningBytes()
	if err := crypto.Verify(receipt.SenderPublicKey, msg, receipt.InitiatorSignature); err != nil {
		return fmt.Errorf("%w: initiator", ErrInvalidReceiptSignature)
	}
	if err := crypto.Verify(receipt.ReceiverPublicKey, msg, receipt.ResponderSignature); err != nil {
		return fmt.Errorf("%w: responder", ErrInvalidReceiptSignature)
	}
	return nil
}
