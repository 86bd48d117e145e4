package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEphemeralKeypairsDeriveMatchingSessionKeys(t *testing.T) {
	alice, err := NewEphemeralKeypair()
	require.NoError(t, err)
	bob, err := NewEphemeralKeypair()
	require.NoError(t, err)

	sessionID := []byte{1, 2, 3, 4}
	aliceKey, err := alice.DeriveSessionKey(bob.PublicKey(), sessionID)
	require.NoError(t, err)
	bobKey, err := bob.DeriveSessionKey(alice.PublicKey(), sessionID)
	require.NoError(t, err)

	require.Equal(t, aliceKey, bobKey)
	require.Len(t, aliceKey, SessionKeySize)
}

func TestDeriveSessionKeyDiffersBySessionID(t *testing.T) {
	alice, err := NewEphemeralKeypair()
	require.NoError(t, err)
	bob, err := NewEphemeralKeypair()
	require.NoError(t, err)

	keyA, err := alice.DeriveSessionKey(bob.PublicKey(), []byte{1})
	require.NoError(t, err)
	keyB, err := alice.DeriveSessionKey(bob.PublicKey(), []byte{2})
	require.NoError(t, err)
	require.NotEqual(t, keyA, keyB)
}

func TestDeriveSessionKeyRejectsWrongSizedPeerKey(t *testing.T) {
	alice, err := NewEphemeralKeypair()
	require.NoError(t, err)
	_, err = alice.DeriveSessionKey([]byte{1, 2, 3}, []byte{1})
	require.ErrorIs(t, err, ErrInvalidKeySize)
}
