package contracts

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/pkg/types"
)

func newTestDispute() (*Dispute, types.Address, types.Address) {
	initiator := types.DeriveAddress([]byte("initiator"))
	respondent := types.DeriveAddress([]byte("respondent"))
	return NewDispute(uuid.New(), initiator, respondent, "payment not received"), initiator, respondent
}

func TestDisputeSubmitEvidenceMovesOpenToUnderReview(t *testing.T) {
	d, initiator, _ := newTestDispute()
	require.Equal(t, DisputeOpen, d.Status)

	require.NoError(t, d.SubmitEvidence(initiator, "receipt", types.Hash{1}))
	require.Equal(t, DisputeUnderReview, d.Status)
	require.Len(t, d.Evidence, 1)
}

func TestDisputeSubmitEvidenceRejectsNonParty(t *testing.T) {
	d, _, _ := newTestDispute()
	stranger := types.DeriveAddress([]byte("stranger"))
	require.ErrorIs(t, d.SubmitEvidence(stranger, "forged", types.Hash{1}), ErrDisputeUnauthorized)
}

func TestDisputeSubmitEvidenceRejectedOnceResolved(t *testing.T) {
	d, _, respondent := newTestDispute()
	require.NoError(t, d.Resolve(ForRespondent, []byte{1}))
	require.ErrorIs(t, d.SubmitEvidence(respondent, "too late", types.Hash{1}), ErrDisputeInvalidState)
}

func TestDisputeResolveRequiresSignature(t *testing.T) {
	d, _, _ := newTestDispute()
	require.ErrorIs(t, d.Resolve(ForInitiator, nil), ErrDisputeNoSignature)
}

func TestDisputeResolveTwiceRejected(t *testing.T) {
	d, _, _ := newTestDispute()
	require.NoError(t, d.Resolve(ForInitiator, []byte{1}))
	require.ErrorIs(t, d.Resolve(ForRespondent, []byte{1}), ErrDisputeAlreadyResolved)
}

func TestDisputeCancelOnlyByInitiator(t *testing.T) {
	d, _, respondent := newTestDispute()
	require.ErrorIs(t, d.Cancel(respondent), ErrDisputeUnauthorized)
}

func TestDisputeCancelRejectedAfterResolution(t *testing.T) {
	d, initiator, _ := newTestDispute()
	require.NoError(t, d.Resolve(ForRespondent, []byte{1}))
	require.ErrorIs(t, d.Cancel(initiator), ErrDisputeInvalidState)
}

func TestDisputeResolveAfterCancelIsInvalidStateNotAlreadyResolved(t *testing.T) {
	d, initiator, _ := newTestDispute()
	require.NoError(t, d.Cancel(initiator))
	require.ErrorIs(t, d.Resolve(ForInitiator, []byte{1}), ErrDisputeInvalidState)
}

func TestDisputeEscrowOutcomeMapping(t *testing.T) {
	forInitiator, _, _ := newTestDispute()
	require.NoError(t, forInitiator.Resolve(ForInitiator, []byte{1}))
	status, ok := forInitiator.EscrowOutcome()
	require.True(t, ok)
	require.Equal(t, EscrowDefaulted, status)

	forRespondent, _, _ := newTestDispute()
	require.NoError(t, forRespondent.Resolve(ForRespondent, []byte{1}))
	status, ok = forRespondent.EscrowOutcome()
	require.True(t, ok)
	require.Equal(t, EscrowActive, status)

	cancelled, initiator, _ := newTestDispute()
	require.NoError(t, cancelled.Cancel(initiator))
	status, ok = cancelled.EscrowOutcome()
	require.True(t, ok)
	require.Equal(t, EscrowActive, status)

	unresolved, _, _ := newTestDispute()
	_, ok = unresolved.EscrowOutcome()
	require.False(t, ok)
}
