package ntp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/pkg/types"
)

func TestBeginHandshakeAdvancesToAwaitingResponse(t *testing.T) {
	s := NewInitiatorSession(mustKeypair(t))
	req, err := s.BeginHandshake([]types.Currency{types.NativeCurrency})
	require.NoError(t, err)
	require.Equal(t, StateAwaitingResponse, s.State)
	require.Equal(t, ProtocolVersion, req.ProtocolVersion)
}

func TestBeginHandshakeRejectsResponderRole(t *testing.T) {
	s := NewResponderSession(mustKeypair(t))
	_, err := s.BeginHandshake([]types.Currency{types.NativeCurrency})
	require.ErrorIs(t, err, ErrOutOfOrderMessage)
}

func TestRespondToHandshakeFullRoundTrip(t *testing.T) {
	initiatorKey := mustKeypair(t)
	responderKey := mustKeypair(t)

	initiator := NewInitiatorSession(initiatorKey)
	req, err := initiator.BeginHandshake([]types.Currency{types.NativeCurrency})
	require.NoError(t, err)

	responder := NewResponderSession(responderKey)
	resp, err := responder.RespondToHandshake(req, []types.Currency{types.NativeCurrency}, PaymentParams{
		Amount:   1000,
		Currency: types.NativeCurrency,
	})
	require.NoError(t, err)
	require.Equal(t, StateAwaitingProof, responder.State)
	require.NotEqual(t, types.Address{}, responder.PeerAddress)

	require.NoError(t, initiator.CompleteHandshake(resp, responderKey.PublicKey()))
	require.Equal(t, StateProofPhase, initiator.State)
	require.Equal(t, responder.ID, initiator.ID)

	require.NotNil(t, initiator.Cipher())
	require.NotNil(t, responder.Cipher())
}

func TestRespondToHandshakeRejectsUnsupportedVersion(t *testing.T) {
	initiator := NewInitiatorSession(mustKeypair(t))
	req, err := initiator.BeginHandshake([]types.Currency{types.NativeCurrency})
	require.NoError(t, err)
	req.ProtocolVersion = ProtocolVersion + 1

	responder := NewResponderSession(mustKeypair(t))
	_, err = responder.RespondToHandshake(req, []types.Currency{types.NativeCurrency}, PaymentParams{Amount: 1, Currency: types.NativeCurrency})
	require.ErrorIs(t, err, ErrUnsupportedVersion)
	require.Equal(t, StateRejected, responder.State)
}

func TestRespondToHandshakeRejectsNoCommonCurrency(t *testing.T) {
	initiator := NewInitiatorSession(mustKeypair(t))
	req, err := initiator.BeginHandshake([]types.Currency{types.NativeCurrency})
	require.NoError(t, err)

	responder := NewResponderSession(mustKeypair(t))
	_, err = responder.RespondToHandshake(req, []types.Currency{types.CustomCurrency("usd")}, PaymentParams{Amount: 1, Currency: types.CustomCurrency("usd")})
	require.ErrorIs(t, err, ErrUnsupportedCurrency)
	require.Equal(t, StateRejected, responder.State)
}
