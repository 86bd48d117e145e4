package gossip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/pkg/types"
)

// Layer's Broadcast/handleEnvelopeBytes paths require a live libp2p Node
// and GossipSub mesh, so they are exercised in integration testing
// rather than here. This file covers the envelope wire format and
// dedup id in isolation.

func TestEnvelopeIDIsDeterministicAndTopicScoped(t *testing.T) {
	payload := []byte("block at height 10")
	idA := envelopeID("nova/blocks", payload)
	idB := envelopeID("nova/blocks", payload)
	idC := envelopeID("nova/transactions", payload)

	require.Equal(t, idA, idB)
	require.NotEqual(t, idA, idC)
}

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	env := &Envelope{
		ID:      types.Hash{1, 2, 3},
		TTL:     5,
		Topic:   "nova/votes",
		Payload: []byte("vote payload"),
	}

	decoded, err := decodeEnvelope(encodeEnvelope(env))
	require.NoError(t, err)
	require.Equal(t, env.ID, decoded.ID)
	require.Equal(t, env.TTL, decoded.TTL)
	require.Equal(t, env.Topic, decoded.Topic)
	require.Equal(t, env.Payload, decoded.Payload)
}

func TestDecodeEnvelopeRejectsTooShort(t *testing.T) {
	_, err := decodeEnvelope([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeEnvelopeRejectsTruncatedTopic(t *testing.T) {
	env := &Envelope{ID: types.Hash{9}, TTL: 1, Topic: "nova/blocks", Payload: []byte("x")}
	raw := encodeEnvelope(env)
	require.Error(t, decodeEnvelopeExpectError(t, raw))
}

func decodeEnvelopeExpectError(t *testing.T, raw []byte) error {
	t.Helper()
	// truncate just past the topic-length prefix so the topic bytes
	// themselves are missing.
	truncated := raw[:32+1+4+2]
	_, err := decodeEnvelope(truncated)
	return err
}
