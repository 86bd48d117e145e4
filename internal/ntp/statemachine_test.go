package ntp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/pkg/types"
)

func mustKeypair(t *testing.T) *crypto.Keypair {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	return kp
}

func TestStateTerminal(t *testing.T) {
	require.True(t, StateReceipted.Terminal())
	require.True(t, StateRejected.Terminal())
	require.True(t, StateTimedOut.Terminal())
	require.True(t, StateCancelled.Terminal())
	require.False(t, StateIdle.Terminal())
	require.False(t, StateBroadcasting.Terminal())
}

func TestCancelBeforeBroadcastingSucceeds(t *testing.T) {
	s := NewInitiatorSession(mustKeypair(t))
	require.True(t, s.Cancel())
	require.Equal(t, StateCancelled, s.State)
}

func TestCancelAfterBroadcastingIsNoOp(t *testing.T) {
	s := NewInitiatorSession(mustKeypair(t))
	s.State = StateBroadcasting
	require.False(t, s.Cancel())
	require.Equal(t, StateBroadcasting, s.State)
}

func TestCancelOnTerminalSessionIsNoOp(t *testing.T) {
	s := NewInitiatorSession(mustKeypair(t))
	s.State = StateRejected
	require.False(t, s.Cancel())
}

func TestOutOfOrderMessageRejectsSessionToRejected(t *testing.T) {
	s := NewInitiatorSession(mustKeypair(t))
	_, err := s.RequestProof(100, types.NativeCurrency)
	require.ErrorIs(t, err, ErrOutOfOrderMessage)
	require.Equal(t, StateRejected, s.State)
}

func TestAlreadyTerminalSessionReturnsTerminalError(t *testing.T) {
	s := NewInitiatorSession(mustKeypair(t))
	s.State = StateReceipted
	_, err := s.RequestProof(100, types.NativeCurrency)
	require.ErrorIs(t, err, ErrSessionTerminal)
}
