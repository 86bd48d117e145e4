package ntp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/pkg/types"
)

func buildReceipt(t *testing.T, sender, receiver *crypto.Keypair) *Receipt {
	t.Helper()
	confirmed := ConfirmedInfo{BlockHeight: 10, TxHash: types.Hash{9}}
	return NewReceipt(uuid.New(), confirmed, sender.Address(), receiver.Address(), sender.PublicKey(), receiver.PublicKey(), 1000, types.NativeCurrency, 1_700_000_000_000)
}

func TestSignAsInitiatorThenCountersignVerifies(t *testing.T) {
	sender, receiver := mustKeypair(t), mustKeypair(t)
	initiator := NewInitiatorSession(sender)
	initiator.State = StateReceiptSigning
	receipt := buildReceipt(t, sender, receiver)

	require.NoError(t, initiator.SignAsInitiator(receipt))
	require.Equal(t, StateReceipted, initiator.State)
	require.NotEmpty(t, receipt.InitiatorSignature)

	responder := NewResponderSession(receiver)
	responder.State = StateReceiptCountersigning
	require.NoError(t, responder.CountersignAsResponder(receipt))
	require.Equal(t, StateReceipted, responder.State)

	require.NoError(t, VerifyReceipt(receipt))
}

func TestSignAsInitiatorRejectsAlreadySigned(t *testing.T) {
	sender, receiver := mustKeypair(t), mustKeypair(t)
	initiator := NewInitiatorSession(sender)
	initiator.State = StateReceiptSigning
	receipt := buildReceipt(t, sender, receiver)
	receipt.InitiatorSignature = []byte{1}

	require.ErrorIs(t, initiator.SignAsInitiator(receipt), ErrReceiptAlreadySigned)
}

func TestCountersignRejectsTamperedReceipt(t *testing.T) {
	sender, receiver := mustKeypair(t), mustKeypair(t)
	initiator := NewInitiatorSession(sender)
	initiator.State = StateReceiptSigning
	receipt := buildReceipt(t, sender, receiver)
	require.NoError(t, initiator.SignAsInitiator(receipt))

	receipt.Amount = 999999 // tamper after signing

	responder := NewResponderSession(receiver)
	responder.State = StateReceiptCountersigning
	require.ErrorIs(t, responder.CountersignAsResponder(receipt), ErrInvalidReceiptSignature)
	require.Equal(t, StateRejected, responder.State)
}

func TestVerifyReceiptRejectsMissingSignatures(t *testing.T) {
	sender, receiver := mustKeypair(t), mustKeypair(t)
	receipt := buildReceipt(t, sender, receiver)
	require.ErrorIs(t, VerifyReceipt(receipt), ErrInvalidReceiptSignature)
}
